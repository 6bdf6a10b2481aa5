// Package flow drives one operator session from X-ray upload to patient
// notification.
//
// States advance empty -> image_selected -> ready -> analyzing -> analyzed
// -> approved -> notified. Reset returns any post-analysis session to empty.
// Only one external call (analysis, approval, notification or export) may be
// in flight per session; a second one is rejected with a conflict error. A
// failed call leaves the session in the state it had before the call.
package flow

import (
	"sync"
	"time"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/domain"
)

// State is a step in the session lifecycle.
type State string

const (
	StateEmpty         State = "empty"
	StateImageSelected State = "image_selected"
	StateReady         State = "ready"
	StateAnalyzing     State = "analyzing"
	StateAnalyzed      State = "analyzed"
	StateApproved      State = "approved"
	StateNotified      State = "notified"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// acceptsInput reports whether image and patient details can still change.
func (s State) acceptsInput() bool {
	switch s {
	case StateEmpty, StateImageSelected, StateReady:
		return true
	}
	return false
}

// HasReport reports whether the session has produced a report.
func (s State) HasReport() bool {
	switch s {
	case StateAnalyzed, StateApproved, StateNotified:
		return true
	}
	return false
}

// stateForStatus maps a stored report status to the session state that
// shows it.
func stateForStatus(status domain.ReportStatus) (State, bool) {
	switch status {
	case domain.ReportStatusAnalyzed:
		return StateAnalyzed, true
	case domain.ReportStatusApproved:
		return StateApproved, true
	case domain.ReportStatusNotified:
		return StateNotified, true
	}
	return "", false
}

// Session is a point-in-time copy of a flow session.
type Session struct {
	ID           string               `json:"id"`
	State        State                `json:"state"`
	HasImage     bool                 `json:"has_image"`
	PatientName  string               `json:"patient_name,omitempty"`
	PatientEmail string               `json:"patient_email,omitempty"`
	ReportID     string               `json:"report_id,omitempty"`
	Report       *domain.ReportRecord `json:"report,omitempty"`
	LastError    string               `json:"last_error,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// entry is the cached, mutable form of a session.
type entry struct {
	mu sync.Mutex // guards the fields below

	id           string
	state        State
	image        *ai.Image
	patientName  string
	patientEmail string
	report       *domain.ReportRecord
	lastError    string
	updatedAt    time.Time

	// busy is held for the duration of an external call
	busy sync.Mutex
}

// snapshot copies the entry. The caller must hold e.mu.
func (e *entry) snapshot() Session {
	s := Session{
		ID:           e.id,
		State:        e.state,
		HasImage:     e.image != nil,
		PatientName:  e.patientName,
		PatientEmail: e.patientEmail,
		LastError:    e.lastError,
		UpdatedAt:    e.updatedAt,
	}
	if e.report != nil && e.state.HasReport() {
		r := *e.report
		s.Report = &r
		s.ReportID = r.ID
	}
	return s
}

// inputState is the pre-analysis state implied by the collected inputs.
// The caller must hold e.mu.
func (e *entry) inputState() State {
	switch {
	case e.image == nil:
		return StateEmpty
	case e.patientName == "" || e.patientEmail == "":
		return StateImageSelected
	default:
		return StateReady
	}
}

// reset clears everything but the ID. The caller must hold e.mu.
func (e *entry) reset(now time.Time) {
	e.state = StateEmpty
	e.image = nil
	e.patientName = ""
	e.patientEmail = ""
	e.report = nil
	e.lastError = ""
	e.updatedAt = now
}

// guard is returned by Manager.begin and releases the busy lock.
type guard struct {
	e *entry
}

func (g guard) release() {
	g.e.busy.Unlock()
}

// errBusy is returned while another external call is running.
func errBusy(op string) error {
	return domain.Conflict(op, "Another operation is already in progress for this session")
}

