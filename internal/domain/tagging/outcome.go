package tagging

import "time"

// Status of a single item after the processor looked at it.
type Status string

const (
	StatusAnalyzed Status = "analyzed"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// Reason explains a failed outcome.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonRead      Reason = "read"
	ReasonAnalysis  Reason = "analysis"
	ReasonQuota     Reason = "quota"
	ReasonMalformed Reason = "malformed"
	ReasonCanceled  Reason = "canceled"
)

// Outcome is the explicit per-item result of a run.
type Outcome struct {
	Item     Item
	Status   Status
	Reason   Reason
	Record   *Record
	Err      error
	Duration time.Duration
}

// Failed is shorthand for o.Status == StatusFailed.
func (o Outcome) Failed() bool { return o.Status == StatusFailed }

// Summary aggregates the outcomes of one run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Total    int       `json:"total"`
	Analyzed int       `json:"analyzed"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Stopped  string    `json:"stopped,omitempty"` // why the run ended early, if it did
}

// Add counts o into the summary.
func (s *Summary) Add(o Outcome) {
	switch o.Status {
	case StatusAnalyzed:
		s.Analyzed++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// Done returns how many items were looked at so far.
func (s Summary) Done() int { return s.Analyzed + s.Skipped + s.Failed }

// Progress is published while a run is going.
type Progress struct {
	Summary
	Current   string    `json:"current,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
