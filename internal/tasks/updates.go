package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	DispatchQueries Phase = iota
	SearchQueries
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case DispatchQueries:
		return "dispatch_queries"
	case SearchQueries:
		return "search_queries"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func dispatchUpdate(step, total int, query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DispatchQueries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Searching for %q...", query),
	}
}

func queryCompletedUpdate(step, total int, res QueryResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchQueries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✓ %q: %d items → %s", res.Query, res.Items, res.File),
		Data:    res,
	}
}

func queryFailedUpdate(step, total int, res QueryResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchQueries,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %q: %v", res.Query, res.Error),
		Data:    res,
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing manifest to %s", path),
	}
}
