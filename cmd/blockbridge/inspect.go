package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/statsdb"
)

// handleBlocksCommand processes `blockbridge blocks`.
func handleBlocksCommand(args []string) error {
	if len(args) > 0 {
		return errors.New("blocks takes no arguments")
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, path := range engine.DefaultRegistry.Paths() {
		reg, _ := engine.DefaultRegistry.Lookup(path)
		fmt.Fprintf(w, "%s\t%s\n", path, reg.Description)
	}
	return w.Flush()
}

// handleDTypeCommand processes `blockbridge dtype`.
func handleDTypeCommand(args []string) error {
	if len(args) == 0 {
		return errors.New("dtype needs at least one markup string")
	}
	for _, markup := range args {
		dt, err := dtype.Parse(markup)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", dt.Markup())
		fmt.Printf("  name:      %s\n", dt.Name())
		fmt.Printf("  elem size: %d\n", dt.ElemSize())
		fmt.Printf("  dimension: %d\n", dt.Dimension())
		fmt.Printf("  size:      %d\n", dt.Size())
		fmt.Printf("  complex:   %t  float: %t  signed: %t\n", dt.IsComplex(), dt.IsFloat(), dt.IsSigned())
		fmt.Printf("  go type:   %s\n", dt.GoType())
	}
	return nil
}

// handleStatsCommand processes `blockbridge stats`. Without a run id it
// lists the recorded runs.
func handleStatsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("stats needs a database and an optional run id")
	}
	store, err := statsdb.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer store.Close()

	if fs.NArg() == 1 {
		runs, err := store.Runs()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tGRAPH\tSTARTED\tENDED")
		for _, r := range runs {
			ended := "-"
			if !r.Ended.IsZero() {
				ended = r.Ended.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Graph, r.Started.Format("2006-01-02 15:04:05"), ended)
		}
		return w.Flush()
	}

	runID, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil {
		return fmt.Errorf("bad run id %q: %w", fs.Arg(1), err)
	}
	stats, err := store.Stats(runID)
	if err != nil {
		return err
	}
	printStats(stats)
	return nil
}
