package orchestrator

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Phase is the UI phase of a session. Exactly one holds at a time.
type Phase int

// Phases, in the order a batch flow normally visits them.
const (
	Idle Phase = iota
	PreviewLoading
	PreviewReady
	BatchLoading
	ColumnSelectionNeeded
	BatchReady
	SingleLoading
	SingleReady
)

var phaseNames = [...]string{
	Idle:                  "idle",
	PreviewLoading:        "preview_loading",
	PreviewReady:          "preview_ready",
	BatchLoading:          "batch_loading",
	ColumnSelectionNeeded: "column_selection_needed",
	BatchReady:            "batch_ready",
	SingleLoading:         "single_loading",
	SingleReady:           "single_ready",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// MarshalText renders the phase by name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Label is a human-readable form, e.g. "Column Selection Needed".
func (p Phase) Label() string {
	return cases.Title(language.English).String(strings.ReplaceAll(p.String(), "_", " "))
}

// Loading reports whether the phase waits on the backend.
func (p Phase) Loading() bool {
	return p == PreviewLoading || p == BatchLoading || p == SingleLoading
}

// Action is a logical request kind. Sequence numbers are kept per action.
type Action int

// Actions.
const (
	ActionSingle Action = iota
	ActionPreview
	ActionBatch

	numActions
)

func (a Action) String() string {
	switch a {
	case ActionSingle:
		return "single"
	case ActionPreview:
		return "preview"
	case ActionBatch:
		return "batch"
	default:
		return "unknown"
	}
}
