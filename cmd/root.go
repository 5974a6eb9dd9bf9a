package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nextedit",
	Short: "Inline-edit rebase and caching engine",
	Long: `nextedit drives the edit algebra, three-way rebase, and next-edit
cache: given a document snapshot, an assistant-suggested edit, and whatever
the user typed since then, it decides whether the suggestion can still be
applied — possibly reshaped — or must be discarded.

Available commands:
  rebase  - Run one rebase scenario from a JSON file and print the outcome
  serve   - Run a scripted document session against the next-edit cache`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called by main.main exactly once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(rebaseCmd)
	rootCmd.AddCommand(serveCmd)
}
