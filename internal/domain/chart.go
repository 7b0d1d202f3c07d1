package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ChartStatus represents the generation state of a chart
type ChartStatus string

// Possible chart status values
const (
	ChartStatusWait      ChartStatus = "wait"
	ChartStatusRunning   ChartStatus = "running"
	ChartStatusSucceeded ChartStatus = "succeeded"
	ChartStatusFailed    ChartStatus = "failed"
)

// MaxChartNameLength is the maximum number of characters in a chart name.
const MaxChartNameLength = 100

// Chart is a single generation task: an uploaded dataset plus an analysis
// goal, and the chart configuration and narrative produced for it.
type Chart struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	Name        string      `json:"name"`
	Goal        string      `json:"goal"`
	ChartType   string      `json:"chart_type"`
	Status      ChartStatus `json:"status"`
	GenChart    string      `json:"gen_chart,omitempty"`
	GenResult   string      `json:"gen_result,omitempty"`
	ExecMessage string      `json:"exec_message,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewChart creates a chart in the WAIT state for the given owner.
// Returns an error if the submission metadata is invalid.
func NewChart(ownerID uuid.UUID, name, goal, chartType string) (*Chart, error) {
	now := time.Now().UTC()
	chart := &Chart{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      name,
		Goal:      goal,
		ChartType: chartType,
		Status:    ChartStatusWait,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := chart.Validate(); err != nil {
		return nil, err
	}

	return chart, nil
}

// ValidateSubmission checks the caller-supplied metadata of a generation request.
func ValidateSubmission(name, goal string) error {
	if strings.TrimSpace(goal) == "" {
		return NewValidationError("goal", "is required", nil)
	}
	if utf8.RuneCountInString(name) > MaxChartNameLength {
		return NewValidationError("name", "is too long", nil)
	}
	return nil
}

// Validate checks if the Chart has valid data, including the content
// invariants attached to terminal states.
func (c *Chart) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "is required", ErrInvalidID)
	}
	if c.OwnerID == uuid.Nil {
		return NewValidationError("owner_id", "is required", ErrInvalidID)
	}
	if err := ValidateSubmission(c.Name, c.Goal); err != nil {
		return err
	}
	if !c.Status.IsValid() {
		return ErrInvalidChartStatus
	}

	switch c.Status {
	case ChartStatusSucceeded:
		if c.GenChart == "" || c.GenResult == "" {
			return NewValidationError("gen_chart", "and gen_result are required for a succeeded chart", nil)
		}
	case ChartStatusFailed:
		if c.ExecMessage == "" {
			return NewValidationError("exec_message", "is required for a failed chart", nil)
		}
	}
	return nil
}

// IsValid reports whether s is a known status.
func (s ChartStatus) IsValid() bool {
	switch s {
	case ChartStatusWait, ChartStatusRunning, ChartStatusSucceeded, ChartStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are permitted from s.
func (s ChartStatus) IsTerminal() bool {
	return s == ChartStatusSucceeded || s == ChartStatusFailed
}

// PredecessorsOf returns the statuses a chart may be in immediately before
// moving to the target status. A retried attempt re-marks a running chart as
// running; a chart that never started may fail directly from wait.
func PredecessorsOf(target ChartStatus) []ChartStatus {
	switch target {
	case ChartStatusRunning:
		return []ChartStatus{ChartStatusWait, ChartStatusRunning}
	case ChartStatusSucceeded:
		return []ChartStatus{ChartStatusRunning}
	case ChartStatusFailed:
		return []ChartStatus{ChartStatusWait, ChartStatusRunning}
	default:
		return nil
	}
}

// CanTransition reports whether a chart may move from one status to another.
func CanTransition(from, to ChartStatus) bool {
	for _, s := range PredecessorsOf(to) {
		if s == from {
			return true
		}
	}
	return false
}

// ChartUpdate is a self-contained set of fields written to a chart in a
// single conditional update. Empty strings leave the column untouched.
type ChartUpdate struct {
	Status      ChartStatus
	GenChart    string
	GenResult   string
	ExecMessage string
}

// Running returns the update that marks an attempt as started.
func Running() ChartUpdate {
	return ChartUpdate{Status: ChartStatusRunning}
}

// Succeeded returns the update recording a successful generation.
func Succeeded(genChart, genResult string) ChartUpdate {
	return ChartUpdate{
		Status:    ChartStatusSucceeded,
		GenChart:  genChart,
		GenResult: genResult,
	}
}

// Failed returns the update recording a failed generation.
func Failed(execMessage string) ChartUpdate {
	return ChartUpdate{
		Status:      ChartStatusFailed,
		ExecMessage: execMessage,
	}
}

// Validate checks that the update carries the content its status requires.
func (u ChartUpdate) Validate() error {
	if !u.Status.IsValid() || u.Status == ChartStatusWait {
		return ErrInvalidChartStatus
	}
	switch u.Status {
	case ChartStatusSucceeded:
		if u.GenChart == "" || u.GenResult == "" {
			return NewValidationError("gen_chart", "and gen_result are required for a succeeded chart", nil)
		}
	case ChartStatusFailed:
		if u.ExecMessage == "" {
			return NewValidationError("exec_message", "is required for a failed chart", nil)
		}
	}
	return nil
}
