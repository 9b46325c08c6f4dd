package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/pymerge/internal/history"
)

// GenerateMermaid produces a Mermaid graph TD provenance diagram for one
// target module. Each recorded merge event becomes a node fed by its
// contributing phases; conflicts hang off their event.
func GenerateMermaid(ctx context.Context, store history.Store, target string, limit int) (string, error) {
	events, err := store.ListEvents(ctx, target, limit)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}

	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	tgtID := getID("target:" + target)
	sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", tgtID, shortPath(target)))

	for _, ev := range events {
		evID := getID("event:" + ev.ID)
		label := fmt.Sprintf("%s %s", ev.Kind, ev.Timestamp.UTC().Format("2006-01-02 15:04"))
		sb.WriteString(fmt.Sprintf("  %s([\"%s\"])\n", evID, label))

		for _, p := range ev.Phases {
			pID := getID("phase:" + p)
			sb.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", pID, p))
			sb.WriteString(fmt.Sprintf("  %s --> %s\n", pID, evID))
		}
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", evID, tgtID))

		conflicts, err := store.ListConflicts(ctx, ev.ID)
		if err != nil {
			return "", fmt.Errorf("list conflicts: %w", err)
		}
		for _, c := range conflicts {
			cID := getID("conflict:" + c.ID)
			sb.WriteString(fmt.Sprintf("  %s{{\"%s: %s\"}}\n", cID, c.Name, c.Reason))
			sb.WriteString(fmt.Sprintf("  %s -.-> %s\n", evID, cID))
		}
	}

	return sb.String(), nil
}

// shortPath returns the last 2 path segments for readability.
func shortPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
