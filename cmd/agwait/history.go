package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// handleHistory implements `agwait history [--limit N] [--json]`.
func handleHistory(args []string, stdout, stderr io.Writer) int {
	fs, common := newFlagSet("history", stderr)
	limit := fs.Int("limit", 20, "number of records to show (0: all)")
	asJSON := fs.Bool("json", false, "print records as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	rt, err := openRuntime(common, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	defer rt.Close()

	records, err := rt.store.History(*limit)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	if len(records) == 0 {
		fmt.Fprintln(stdout, "no waits recorded")
		return exitOK
	}
	for _, rec := range records {
		mode := ""
		if rec.Reverse {
			mode = " (reverse)"
		}
		fmt.Fprintf(stdout, "%s  %-15s %-10s %s%s  %d attempts, %dms\n",
			rec.StartedAt.Format("2006-01-02 15:04:05"), rec.Command, rec.Outcome, rec.Target, mode,
			rec.Attempts, rec.Duration.Milliseconds())
	}
	return exitOK
}
