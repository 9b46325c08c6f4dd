package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/pymerge/internal/export"
	"github.com/dusk-indust/pymerge/internal/history"
)

// runHistory prints recorded merge events, newest first.
func runHistory(store history.Store, target string) error {
	ctx := context.Background()

	events, err := store.ListEvents(ctx, target, 50)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No merge history recorded.")
		return nil
	}

	for _, ev := range events {
		fmt.Printf("%s  %-11s %s  [%s]\n",
			ev.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			ev.Kind, ev.Target, strings.Join(ev.Phases, " "))
		for _, w := range ev.Warnings {
			fmt.Printf("    warning: %s\n", w)
		}
		conflicts, err := store.ListConflicts(ctx, ev.ID)
		if err != nil {
			return err
		}
		for _, c := range conflicts {
			fmt.Printf("    conflict: %s [%s]: %s\n", c.Name, strings.Join(c.Phases, ", "), c.Reason)
		}
	}
	return nil
}

// runDiagram prints a Mermaid provenance diagram for one target module.
func runDiagram(store history.Store, target string) error {
	mermaid, err := export.GenerateMermaid(context.Background(), store, target, 20)
	if err != nil {
		return err
	}
	fmt.Print(mermaid)
	return nil
}
