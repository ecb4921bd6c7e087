package orchestrator

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/leaptext/internal/backend"
)

// Session is the UI-visible state of one orchestrator. Views receive copies
// from Orchestrator.Snapshot.
type Session struct {
	Phase        Phase
	File         *backend.File
	Columns      []string
	TargetColumn string
	// LastError is the terminal failure of the last request, if any.
	LastError *Failure
	// ColumnNotice is the backend's reason for rejecting the column. It is
	// set only while the session waits for a column choice.
	ColumnNotice string

	Preview PreviewInfo
	Batch   BatchInfo
	Single  SingleInfo

	busy        [numActions]bool
	needsColumn bool
}

// PreviewInfo is the last successful preview.
type PreviewInfo struct {
	Rows   int
	Sample string // HTML fragment from the backend, unsanitized
	Loaded bool
}

// BatchInfo is the last successful batch.
type BatchInfo struct {
	RowsProcessed int
	DownloadRef   string
}

// SingleInfo is the last successful single submission.
type SingleInfo struct {
	Result string
	Input  string
}

// ColumnChoice is one selectable column badge.
type ColumnChoice struct {
	Name     string
	Selected bool
}

// Busy reports whether a request of kind a is in flight.
func (s Session) Busy(a Action) bool {
	if a < 0 || a >= numActions {
		return false
	}
	return s.busy[a]
}

// FileName returns the selected file name or "".
func (s Session) FileName() string {
	if s.File == nil {
		return ""
	}
	return s.File.Name
}

// HasColumn reports whether name is one of the available columns.
func (s Session) HasColumn(name string) bool {
	return slices.Contains(s.Columns, name)
}

// ColumnChoices lists the available columns with at most one marked selected.
func (s Session) ColumnChoices() []ColumnChoice {
	choices := make([]ColumnChoice, len(s.Columns))
	for i, c := range s.Columns {
		choices[i] = ColumnChoice{Name: c, Selected: c == s.TargetColumn}
	}
	return choices
}

// ShowPreview reports whether the preview panel is visible.
func (s Session) ShowPreview() bool {
	return s.Preview.Loaded && s.Phase != PreviewLoading
}

// ShowSelector reports whether the column-correction selector is visible.
func (s Session) ShowSelector() bool {
	return s.needsColumn && s.Phase == ColumnSelectionNeeded
}

// ShowBatchResult reports whether the batch result panel is visible.
func (s Session) ShowBatchResult() bool {
	return s.Batch.DownloadRef != "" || s.Phase == BatchReady
}

// ShowSingleResult reports whether the single result panel is visible.
func (s Session) ShowSingleResult() bool {
	return s.Phase == SingleReady || (s.Single.Result != "" && !s.busy[ActionSingle])
}

// CheckInvariant verifies the column-selection invariant.
func (s Session) CheckInvariant() error {
	if s.Phase != ColumnSelectionNeeded {
		return nil
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("column selection needed without available columns")
	}
	if s.TargetColumn != "" && s.HasColumn(s.TargetColumn) {
		return fmt.Errorf("column selection needed but target %q is valid", s.TargetColumn)
	}
	return nil
}

// clone copies what a view could mutate. The file is copied but its Content
// is shared with the live session and is read-only for views.
func (s Session) clone() Session {
	if s.File != nil {
		f := *s.File
		s.File = &f
	}
	s.Columns = slices.Clone(s.Columns)
	if s.LastError != nil {
		f := *s.LastError
		s.LastError = &f
	}
	return s
}
