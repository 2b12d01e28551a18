package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SkippedItem records one per-entity failure that did not abort the batch.
type SkippedItem struct {
	Player string `json:"player"`
	Prop   string `json:"prop"`
	Reason string `json:"reason"`
}

// Summary is the observable record of one run: what was produced, what was
// skipped and why.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`

	RolesFitted     bool `json:"roles_fitted"` // false when persisted bundles were reused
	PlayersReported int  `json:"players_reported"`

	LinesTotal       int           `json:"lines_total"`
	LinesProjected   int           `json:"lines_projected"`
	LinesSkipped     int           `json:"lines_skipped"`
	SuggestionsMade  int           `json:"suggestions_made"`
	SuggestionPasses int           `json:"suggestion_passes"`
	Skipped          []SkippedItem `json:"skipped,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

// WriteText persists the summary in its human-readable form.
func (s *Summary) WriteText(dir string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s at %s\n", s.RunID, s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %dms\n", s.DurationMS)
	fmt.Fprintf(&b, "Players reported: %d (roles fitted: %t)\n", s.PlayersReported, s.RolesFitted)
	fmt.Fprintf(&b, "Lines: %d (projected %d, skipped %d)\n", s.LinesTotal, s.LinesProjected, s.LinesSkipped)
	fmt.Fprintf(&b, "Suggestions: %d (passes %d)\n", s.SuggestionsMade, s.SuggestionPasses)
	for _, item := range s.Skipped {
		fmt.Fprintf(&b, "Skipped: %s %s: %s\n", item.Player, item.Prop, item.Reason)
	}
	for _, note := range s.Notes {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	return os.WriteFile(filepath.Join(dir, "run_summary.txt"), []byte(b.String()), 0o644)
}
