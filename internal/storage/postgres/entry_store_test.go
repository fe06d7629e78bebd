package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/robot-leaderboard/internal/leaderboard"
)

var entryColumns = []string{"id", "bot_url", "bot_name", "weight_class", "rank", "total_points"}

func newMockStore(t *testing.T) (*EntryStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewEntryStoreWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestNewEntryStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewEntryStoreWithPool(mock, "bots; DROP TABLE users")
	require.Error(t, err)
	_, err = NewEntryStoreWithPool(nil, "")
	require.Error(t, err)

	store, err := NewEntryStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, DefaultTable, store.table)
}

func TestNewEntryStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewEntryStore(context.Background(), Config{})
	require.Error(t, err)
}

func TestFindByURL(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	url := "https://example.com/bots/1"

	mock.ExpectQuery("SELECT (.+) FROM tracked_bots WHERE bot_url = \\$1").
		WithArgs(url).
		WillReturnRows(pgxmock.NewRows(entryColumns).AddRow("7", url, "Bee", "Fairyweight", 3, 1.5))

	entry, found, err := store.FindByURL(context.Background(), url)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, leaderboard.Entry{ID: "7", SourceURL: url, DisplayName: "Bee", WeightClass: "Fairyweight", Rank: 3, TotalScore: 1.5}, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByURLMissing(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM tracked_bots WHERE bot_url").
		WithArgs("https://example.com/none").
		WillReturnRows(pgxmock.NewRows(entryColumns))

	_, found, err := store.FindByURL(context.Background(), "https://example.com/none")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByURLError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM tracked_bots").
		WithArgs("https://example.com/x").
		WillReturnError(errors.New("connection reset"))

	_, _, err := store.FindByURL(context.Background(), "https://example.com/x")
	require.ErrorContains(t, err, "select entry by url")
}

func TestInsertReturnsStoredRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	url := "https://example.com/bots/2"
	fields := leaderboard.Fields{DisplayName: "Saw", WeightClass: "1lb - Plastic Antweight", Rank: 7, TotalScore: 3.75}

	mock.ExpectQuery("INSERT INTO tracked_bots").
		WithArgs(url, fields.DisplayName, fields.WeightClass, fields.Rank, fields.TotalScore).
		WillReturnRows(pgxmock.NewRows(entryColumns).AddRow("11", url, "Saw", "1lb - Plastic Antweight", 7, 3.75))

	entry, err := store.Insert(context.Background(), url, fields)
	require.NoError(t, err)
	require.Equal(t, "11", entry.ID)
	require.Equal(t, fields, entry.Fields())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	fields := leaderboard.Fields{DisplayName: "Saw", WeightClass: "Antweight", Rank: 2, TotalScore: 10}

	mock.ExpectQuery("UPDATE tracked_bots SET").
		WithArgs("11", fields.DisplayName, fields.WeightClass, fields.Rank, fields.TotalScore).
		WillReturnRows(pgxmock.NewRows(entryColumns).AddRow("11", "https://example.com/bots/2", "Saw", "Antweight", 2, 10.0))
	mock.ExpectQuery("UPDATE tracked_bots SET").
		WithArgs("12", fields.DisplayName, fields.WeightClass, fields.Rank, fields.TotalScore).
		WillReturnError(pgx.ErrNoRows)

	entry, err := store.Update(context.Background(), "11", fields)
	require.NoError(t, err)
	require.Equal(t, 10.0, entry.TotalScore)

	_, err = store.Update(context.Background(), "12", fields)
	require.ErrorIs(t, err, ErrEntryNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM tracked_bots").
		WithArgs("11").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM tracked_bots").
		WithArgs("11").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.Delete(context.Background(), "11"))
	require.ErrorIs(t, store.Delete(context.Background(), "11"), ErrEntryNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM tracked_bots ORDER BY id").
		WillReturnRows(pgxmock.NewRows(entryColumns).
			AddRow("1", "https://example.com/a", "A", "Fairyweight", 1, 2.0).
			AddRow("2", "https://example.com/b", "B", "Antweight", 9999, 0.0))

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "https://example.com/b", entries[1].SourceURL)
	require.Equal(t, leaderboard.UnknownRank, entries[1].Rank)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEmpty(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM tracked_bots").
		WillReturnRows(pgxmock.NewRows(entryColumns))

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestMigrate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tracked_bots").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
