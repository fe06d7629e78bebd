// The main package for the botboard executable.
package main

import (
	"github.com/JakeFAU/robot-leaderboard/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
