package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent cycle outcomes.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show cycles")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cycles, err := store.ListRecentCycles(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		fmt.Fprintln(os.Stdout, "no cycles found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Started (UTC)\tDuration\tProcessed\tAlerted\tDispatched\tFailed\tMode\tStatus\tError")

	for _, cycle := range cycles {
		errMsg := ""
		if cycle.Error != nil {
			errMsg = sanitizeInline(*cycle.Error)
		}
		mode := "live"
		if cycle.Simulated {
			mode = "simulated"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			cycle.StartedAt.UTC().Format(time.RFC3339),
			cycle.FinishedAt.Sub(cycle.StartedAt).Round(time.Second),
			cycle.Processed,
			cycle.Alerted,
			cycle.Dispatched,
			cycle.Failed,
			mode,
			cycle.Status,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
