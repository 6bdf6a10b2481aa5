package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/radai/internal/ai"
	"github.com/DukeRupert/radai/internal/domain"
	"github.com/DukeRupert/radai/internal/report"
	"github.com/DukeRupert/radai/internal/service"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = time.Hour

// Manager owns flow sessions and runs their transitions.
type Manager struct {
	reports service.ReportService
	cache   *cache.Cache
	logger  *slog.Logger
	now     func() time.Time
}

// NewManager creates a Manager whose sessions expire after ttl without
// activity.
func NewManager(reports service.ReportService, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		reports: reports,
		cache:   cache.New(ttl, 10*time.Minute),
		logger:  logger,
		now:     time.Now,
	}
}

// Create starts a new empty session.
func (m *Manager) Create() Session {
	e := &entry{
		id:        uuid.NewString(),
		state:     StateEmpty,
		updatedAt: m.now(),
	}
	m.cache.Set(e.id, e, cache.DefaultExpiration)
	m.logger.Debug("session created", "session_id", e.id)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Get returns the current session.
func (m *Manager) Get(id string) (Session, error) {
	e, err := m.lookup("flow.get", id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// SetImage selects the X-ray to analyze. A session that already has patient
// details becomes ready.
func (m *Manager) SetImage(id, dataURI string) (Session, error) {
	const op = "flow.set_image"

	img, err := ai.ParseDataURI(dataURI)
	if err != nil {
		return Session{}, domain.Wrap(err, domain.EINVALID, op, "Invalid image: "+err.Error())
	}

	return m.mutateInput(op, id, func(e *entry) {
		e.image = img
	})
}

// SetPatient records the patient details. A session that already has an
// image becomes ready.
func (m *Manager) SetPatient(id, name, email string) (Session, error) {
	const op = "flow.set_patient"

	if err := domain.ValidatePatient(op, name, email); err != nil {
		return Session{}, err
	}

	return m.mutateInput(op, id, func(e *entry) {
		e.patientName = name
		e.patientEmail = email
	})
}

func (m *Manager) mutateInput(op, id string, apply func(*entry)) (Session, error) {
	e, err := m.lookup(op, id)
	if err != nil {
		return Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.acceptsInput() {
		return Session{}, domain.Conflict(op, "Session already has a report. Reset it to start over.")
	}
	apply(e)
	e.state = e.inputState()
	e.lastError = ""
	e.updatedAt = m.now()
	m.touch(e)
	return e.snapshot(), nil
}

// Analyze runs the analysis for a ready session. On failure the session
// returns to ready and the error is recorded on it.
func (m *Manager) Analyze(ctx context.Context, id string) (Session, error) {
	const op = "flow.analyze"

	e, g, err := m.begin(op, id, StateReady)
	if err != nil {
		return Session{}, err
	}
	defer g.release()

	e.mu.Lock()
	params := service.AnalyzeParams{
		ImageDataURI: e.image.DataURI(),
		PatientName:  e.patientName,
		PatientEmail: e.patientEmail,
	}
	e.state = StateAnalyzing
	e.lastError = ""
	e.mu.Unlock()

	record, err := m.reports.Analyze(ctx, params)

	return m.finish(e, err, func() {
		e.state = StateAnalyzed
		e.report = record
	}, StateReady)
}

// Approve marks the session's report approved.
func (m *Manager) Approve(ctx context.Context, id string) (Session, error) {
	const op = "flow.approve"

	e, g, err := m.beginSynced(ctx, op, id, StateAnalyzed)
	if err != nil {
		return Session{}, err
	}
	defer g.release()

	record, err := m.reports.Approve(ctx, m.reportID(e))

	return m.finish(e, err, func() {
		e.state = StateApproved
		e.report = record
	}, StateAnalyzed)
}

// Notify emails the patient. On failure the session stays approved and the
// operator may try again.
func (m *Manager) Notify(ctx context.Context, id string) (Session, error) {
	const op = "flow.notify"

	e, g, err := m.beginSynced(ctx, op, id, StateApproved)
	if err != nil {
		return Session{}, err
	}
	defer g.release()

	record, err := m.reports.Notify(ctx, m.reportID(e))

	return m.finish(e, err, func() {
		e.state = StateNotified
		e.report = record
	}, StateApproved)
}

// Export renders the session's report. The session state does not change.
func (m *Manager) Export(ctx context.Context, id string, variant report.Variant) (*service.Export, error) {
	const op = "flow.export"

	e, g, err := m.begin(op, id, StateAnalyzed, StateApproved, StateNotified)
	if err != nil {
		return nil, err
	}
	defer g.release()

	return m.reports.Export(ctx, m.reportID(e), variant)
}

// Reset clears a session that has produced a report so a new X-ray can be
// analyzed. The stored report is kept.
func (m *Manager) Reset(id string) (Session, error) {
	const op = "flow.reset"

	e, g, err := m.begin(op, id, StateAnalyzed, StateApproved, StateNotified)
	if err != nil {
		return Session{}, err
	}
	defer g.release()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset(m.now())
	m.touch(e)
	return e.snapshot(), nil
}

// =============================================================================
// Helpers
// =============================================================================

func (m *Manager) lookup(op, id string) (*entry, error) {
	if x, found := m.cache.Get(id); found {
		return x.(*entry), nil
	}
	return nil, domain.NotFound(op, "session", id)
}

// touch refreshes the session expiry.
func (m *Manager) touch(e *entry) {
	m.cache.Set(e.id, e, cache.DefaultExpiration)
}

// begin claims the session for one external call after checking that it is
// in one of the allowed states.
func (m *Manager) begin(op, id string, allowed ...State) (*entry, guard, error) {
	e, err := m.claim(op, id)
	if err != nil {
		return nil, guard{}, err
	}
	return m.check(op, e, allowed)
}

// beginSynced is begin, but first brings the session in line with the
// stored record so a status change made elsewhere (another session or the
// CLI) is honoured.
func (m *Manager) beginSynced(ctx context.Context, op, id string, allowed ...State) (*entry, guard, error) {
	e, err := m.claim(op, id)
	if err != nil {
		return nil, guard{}, err
	}
	m.syncReport(ctx, e)
	return m.check(op, e, allowed)
}

func (m *Manager) claim(op, id string) (*entry, error) {
	e, err := m.lookup(op, id)
	if err != nil {
		return nil, err
	}
	if !e.busy.TryLock() {
		return nil, errBusy(op)
	}
	return e, nil
}

// check releases the busy lock and fails unless the session is in one of
// the allowed states.
func (m *Manager) check(op string, e *entry, allowed []State) (*entry, guard, error) {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	for _, s := range allowed {
		if state == s {
			return e, guard{e: e}, nil
		}
	}
	e.busy.Unlock()
	return nil, guard{}, domain.Errorf(domain.ECONFLICT, op, "Action is not available while the session is %s", state)
}

// syncReport re-reads the session's report and adopts its status. A read
// failure leaves the session as it is. The caller must hold e.busy.
func (m *Manager) syncReport(ctx context.Context, e *entry) {
	id := m.reportID(e)
	if id == "" {
		return
	}
	record, err := m.reports.Get(ctx, id)
	if err != nil {
		m.logger.Warn("session report re-read failed", "session_id", e.id, "report_id", id, "error", err)
		return
	}
	state, ok := stateForStatus(record.Status)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.HasReport() {
		return
	}
	if e.state != state {
		m.logger.Info("session synced with stored report",
			"session_id", e.id,
			"report_id", id,
			"from", e.state,
			"to", state,
		)
		e.state = state
	}
	e.report = record
}

// finish applies success, or restores prev and records the error.
func (m *Manager) finish(e *entry, err error, success func(), prev State) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.state = prev
		e.lastError = domain.ErrorMessage(err)
		m.logger.Warn("session action failed",
			"session_id", e.id,
			"state", e.state,
			"error", err,
		)
	} else {
		success()
		e.lastError = ""
	}
	e.updatedAt = m.now()
	m.touch(e)

	if err != nil {
		return Session{}, err
	}
	return e.snapshot(), nil
}

func (m *Manager) reportID(e *entry) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.report == nil {
		return ""
	}
	return e.report.ID
}
