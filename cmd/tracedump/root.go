package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var dbPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "tracedump",
	Short: "Tracedump inspects the trace databases recorded by " +
		"instrumented programs.",
	Long: `Tracedump inspects the trace databases recorded by instrumented ` +
		`programs. It can list the instrumented callables that appear in a ` +
		`trace and dump the recorded invocation events.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// A .env file can provide INSTRUMENT_TRACE_DB so the flag can be
	// omitted during repeated inspections.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d",
		os.Getenv("INSTRUMENT_TRACE_DB"),
		"path to the trace database file")
}

func mustHaveDBPath() {
	if dbPath == "" {
		rootCmd.PrintErrln(
			"no trace database given, use --db or INSTRUMENT_TRACE_DB")
		os.Exit(1)
	}
}
