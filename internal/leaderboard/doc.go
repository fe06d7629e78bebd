// Package leaderboard holds the domain model of the combat robot tracker: the
// tracked entry, the collaborator interfaces the reconcile, coordinator, and
// publisher packages plug into, and the pure grouping, ranking, and panel
// rendering routines shared by the on-demand and published leaderboards.
package leaderboard
