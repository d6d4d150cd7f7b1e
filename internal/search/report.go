package search

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Action is one timed step of a search.
type Action struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Notes    []string      `json:"notes,omitempty"`

	start time.Time
}

// PerformanceReport records how long the steps of a search took and what
// they decided.
type PerformanceReport struct {
	start   time.Time
	total   time.Duration
	actions []*Action
}

func NewPerformanceReport() *PerformanceReport {
	return &PerformanceReport{start: time.Now()}
}

func (r *PerformanceReport) finish() {
	if n := len(r.actions); n > 0 && r.actions[n-1].Duration == 0 {
		a := r.actions[n-1]
		a.Duration = time.Since(a.start)
	}
}

// NewAction closes the running action and starts the next one.
func (r *PerformanceReport) NewAction(name string) {
	r.finish()
	r.actions = append(r.actions, &Action{Name: name, start: time.Now()})
}

// AddData attaches a note to the running action.
func (r *PerformanceReport) AddData(format string, args ...any) {
	if len(r.actions) == 0 {
		r.NewAction("Search")
	}
	a := r.actions[len(r.actions)-1]
	a.Notes = append(a.Notes, fmt.Sprintf(format, args...))
}

func (r *PerformanceReport) Done() {
	r.finish()
	r.total = time.Since(r.start)
}

func (r *PerformanceReport) Total() time.Duration {
	return r.total
}

func (r *PerformanceReport) Actions() []Action {
	result := make([]Action, len(r.actions))
	for i, a := range r.actions {
		result[i] = *a
	}
	return result
}

// Notes returns the notes of all actions in order.
func (r *PerformanceReport) Notes() []string {
	var notes []string
	for _, a := range r.actions {
		notes = append(notes, a.Notes...)
	}
	return notes
}

func (r *PerformanceReport) String() string {
	var sb strings.Builder
	for _, a := range r.actions {
		fmt.Fprintf(&sb, "%s: %v\n", a.Name, a.Duration.Round(time.Microsecond))
		for _, note := range a.Notes {
			fmt.Fprintf(&sb, "  %s\n", note)
		}
	}
	fmt.Fprintf(&sb, "Total: %v", r.total.Round(time.Microsecond))
	return sb.String()
}

func (r *PerformanceReport) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(r.actions)+1)
	for _, a := range r.actions {
		attrs = append(attrs, slog.Duration(a.Name, a.Duration))
	}
	attrs = append(attrs, slog.Duration("total", r.total))
	return slog.GroupValue(attrs...)
}
