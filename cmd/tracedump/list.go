package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/instrument/tracing"
)

// listCmd lists the instrumented callables that appear in a trace.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the instrumented callables that appear in the trace",
	Run: func(cmd *cobra.Command, args []string) {
		mustHaveDBPath()

		reader := tracing.NewSQLiteTraceReader(dbPath)
		defer reader.Close()

		for _, what := range reader.ListWhats() {
			fmt.Println(what)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
