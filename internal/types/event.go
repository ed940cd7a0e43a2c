package types

import "time"

// Event types published by the session controller.
const (
	EventSessionOpened     = "session_opened"
	EventLineSelected      = "line_selected"
	EventLineSkipped       = "line_skipped"
	EventNavigated         = "navigated"
	EventRefreshed         = "refreshed"
	EventAssemblyStarted   = "assembly_started"
	EventAssemblySucceeded = "assembly_succeeded"
	EventAssemblyFailed    = "assembly_failed"
	EventAssemblyCanceled  = "assembly_canceled"
)

type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Line      *int      `json:"line,omitempty"`
	Current   int       `json:"current"`
	JobID     string    `json:"job_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}
