// Package progress derives completion metrics for a single project from
// its task set. Everything here is pure: callers recompute on every task
// change and fold the result into whatever view needs it.
package progress

import "teamsync/internal/model"

// Summary holds the derived progress numbers for one project.
// PercentComplete is stored unrounded; rounding is a display concern.
type Summary struct {
	CompletedCount  int     `json:"completed_count"`
	TotalCount      int     `json:"total_count"`
	PercentComplete float64 `json:"percent_complete"`
}

// Compute counts completed tasks and derives the completion percentage.
// A project with zero tasks is 0% complete, not a division by zero.
func Compute(tasks []model.Task) Summary {
	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}

	total := len(tasks)
	percent := 0.0
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}

	return Summary{
		CompletedCount:  completed,
		TotalCount:      total,
		PercentComplete: percent,
	}
}

// AllCompleted reports whether every task is done. A project with no
// tasks is never "all complete", so an empty project cannot be closed.
func (s Summary) AllCompleted() bool {
	return s.TotalCount > 0 && s.CompletedCount == s.TotalCount
}
