package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/instrument/tracing"
)

var (
	dumpWhat     string
	dumpKind     string
	dumpParentID string
	dumpAsJSON   bool
)

// dumpCmd prints the recorded invocation events.
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the recorded invocation events",
	Run: func(cmd *cobra.Command, args []string) {
		mustHaveDBPath()

		reader := tracing.NewSQLiteTraceReader(dbPath)
		defer reader.Close()

		events := reader.ListEvents(tracing.EventQuery{
			What:     dumpWhat,
			Kind:     tracing.Kind(dumpKind),
			ParentID: dumpParentID,
		})

		if dumpAsJSON {
			dumpJSON(events)
			return
		}

		dumpTable(events)
	},
}

func dumpJSON(events []tracing.Event) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(events)
	if err != nil {
		panic(err)
	}
}

func dumpTable(events []tracing.Event) {
	fmt.Printf("%-22s %-22s %-8s %-24s %-14s %s\n",
		"ID", "ParentID", "Kind", "What", "Duration", "Error")

	for _, e := range events {
		fmt.Printf("%-22s %-22s %-8s %-24s %-14s %s\n",
			e.ID,
			e.ParentID,
			e.Kind,
			e.What,
			e.Duration,
			e.ErrorMessage(),
		)
	}
}

func init() {
	dumpCmd.Flags().StringVar(&dumpWhat, "what", "",
		"only dump events of the named callable")
	dumpCmd.Flags().StringVar(&dumpKind, "kind", "",
		"only dump events of a kind (enter, return, error)")
	dumpCmd.Flags().StringVar(&dumpParentID, "parent", "",
		"only dump events nested under the given invocation id")
	dumpCmd.Flags().BoolVar(&dumpAsJSON, "json", false,
		"dump events as JSON")

	rootCmd.AddCommand(dumpCmd)
}
