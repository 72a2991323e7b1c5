// Package netlog is the session log manager: it owns the session lifecycle,
// gates every record mutation on the expiry and access policies, persists
// through the store, and publishes each committed change to the hub.
package netlog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/netlog/internal/announce"
	"github.com/zulandar/netlog/internal/broadcast"
	"github.com/zulandar/netlog/internal/models"
	"github.com/zulandar/netlog/internal/policy"
	"github.com/zulandar/netlog/internal/schedule"
	"github.com/zulandar/netlog/internal/store"
)

// DefaultAnnounceTimeout bounds a single net-open announcement.
const DefaultAnnounceTimeout = 10 * time.Second

// Publisher receives committed record changes. *broadcast.Hub satisfies it.
type Publisher interface {
	Publish(sessionID string, ev broadcast.Event)
}

// Opts holds the manager's collaborators.
type Opts struct {
	Store     store.Store
	Publisher Publisher
	Logger    logrus.FieldLogger

	// Announcer, when set, is told about every new session.
	Announcer       announce.Announcer
	AnnounceTimeout time.Duration

	// Schedule, when set, supplies the default session time.
	Schedule cron.Schedule
	Location *time.Location

	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

// Manager implements the session and record operations.
type Manager struct {
	store     store.Store
	pub       Publisher
	log       logrus.FieldLogger
	announcer announce.Announcer
	annTO     time.Duration
	sched     cron.Schedule
	loc       *time.Location
	now       func() time.Time

	announcing sync.WaitGroup
}

// New validates opts and returns a Manager.
func New(opts Opts) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("netlog: store is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("netlog: publisher is required")
	}
	m := &Manager{
		store:     opts.Store,
		pub:       opts.Publisher,
		log:       opts.Logger,
		announcer: opts.Announcer,
		annTO:     opts.AnnounceTimeout,
		sched:     opts.Schedule,
		loc:       opts.Location,
		now:       opts.Now,
	}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}
	if m.annTO <= 0 {
		m.annTO = DefaultAnnounceTimeout
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// SessionSpec describes a session to open.
type SessionSpec struct {
	ControllerID        string
	ControllerName      string
	ControllerEquipment string
	ControllerAntenna   string
	ControllerQTH       string
	// SessionTime is the net's start. Zero means the scheduled net in
	// progress, or now when no schedule is configured.
	SessionTime time.Time
}

// SessionEdit replaces the controller display snapshot of a session.
type SessionEdit struct {
	ControllerName      string
	ControllerEquipment string
	ControllerAntenna   string
	ControllerQTH       string
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	ControllerID string
	// ActiveOnly drops sessions whose mutation window has elapsed.
	ActiveOnly bool
}

// RecordFields are the caller-supplied contents of a record. Empty optional
// fields are stored as null.
type RecordFields struct {
	Callsign  string
	QTH       string
	Equipment string
	Antenna   string
	Power     string
	Signal    string
	Report    string
	Remarks   string
}

// CreateSession opens a new session. It performs no expiry or access check.
func (m *Manager) CreateSession(ctx context.Context, spec SessionSpec) (*models.Session, error) {
	controllerID := strings.TrimSpace(spec.ControllerID)
	controllerName := strings.TrimSpace(spec.ControllerName)
	if controllerID == "" {
		return nil, validationError("controller id is required")
	}
	if controllerName == "" {
		return nil, validationError("controller name is required")
	}

	now := m.now()
	sessionTime := spec.SessionTime
	if sessionTime.IsZero() {
		sessionTime = m.defaultSessionTime(now)
	}

	s := &models.Session{
		ID:                  uuid.NewString(),
		ControllerID:        controllerID,
		ControllerName:      controllerName,
		ControllerEquipment: optional(spec.ControllerEquipment),
		ControllerAntenna:   optional(spec.ControllerAntenna),
		ControllerQTH:       optional(spec.ControllerQTH),
		SessionTime:         sessionTime.UTC(),
		CreatedAt:           now.UTC(),
	}
	if err := m.store.InsertSession(ctx, s); err != nil {
		return nil, storeError(err, "create session")
	}
	m.log.WithField("session-id", s.ID).WithField("controller", s.ControllerID).Info("session opened")
	m.announce(*s)
	return s, nil
}

// defaultSessionTime is the scheduled net in progress, else now.
func (m *Manager) defaultSessionTime(now time.Time) time.Time {
	if m.sched == nil {
		return now
	}
	return schedule.Current(m.sched, now.In(m.loc), policy.ExpiryWindow)
}

// announce tells the configured channels about s without blocking the caller.
func (m *Manager) announce(s models.Session) {
	if m.announcer == nil {
		return
	}
	m.announcing.Add(1)
	go func() {
		defer m.announcing.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.annTO)
		defer cancel()
		if err := m.announcer.Announce(ctx, s); err != nil {
			m.log.WithField("session-id", s.ID).WithError(err).Warn("announce failed")
		}
	}()
}

// Wait blocks until in-flight announcements finish.
func (m *Manager) Wait() {
	m.announcing.Wait()
}

// GetSession returns a session, expired or not.
func (m *Manager) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s, err := m.store.SessionByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "session %s", id)
	}
	return s, nil
}

// ListSessions returns sessions newest first.
func (m *Manager) ListSessions(ctx context.Context, filter SessionFilter) ([]models.Session, error) {
	sessions, err := m.store.Sessions(ctx, store.SessionFilter{ControllerID: strings.TrimSpace(filter.ControllerID)})
	if err != nil {
		return nil, storeError(err, "list sessions")
	}
	if !filter.ActiveOnly {
		return sessions, nil
	}
	now := m.now()
	active := sessions[:0]
	for _, s := range sessions {
		if !policy.IsExpired(s.SessionTime, now) {
			active = append(active, s)
		}
	}
	return active, nil
}

// UpdateSession edits the controller display snapshot. The same expiry and
// update rules as record edits apply. The change is not broadcast.
func (m *Manager) UpdateSession(ctx context.Context, id string, actor policy.Actor, edit SessionEdit) (*models.Session, error) {
	s, err := m.mutableSession(ctx, id, actor, policy.ActionUpdate)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(edit.ControllerName)
	if name == "" {
		return nil, validationError("controller name is required")
	}
	s.ControllerName = name
	s.ControllerEquipment = optional(edit.ControllerEquipment)
	s.ControllerAntenna = optional(edit.ControllerAntenna)
	s.ControllerQTH = optional(edit.ControllerQTH)
	if err := m.store.UpdateSession(ctx, s); err != nil {
		return nil, storeError(err, "update session %s", id)
	}
	return s, nil
}

// CreateRecord logs a contact into an open session and publishes
// record_added.
func (m *Manager) CreateRecord(ctx context.Context, sessionID string, actor policy.Actor, fields RecordFields) (*models.Record, error) {
	if _, err := m.mutableSession(ctx, sessionID, actor, policy.ActionCreate); err != nil {
		return nil, err
	}
	callsign, err := normalizeCallsign(fields.Callsign)
	if err != nil {
		return nil, err
	}
	r := &models.Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		CreatedAt: m.now().UTC(),
	}
	fields.apply(r, callsign)
	if err := m.store.InsertRecord(ctx, r); err != nil {
		return nil, storeError(err, "create record in session %s", sessionID)
	}
	m.pub.Publish(sessionID, broadcast.RecordAdded(*r))
	return r, nil
}

// UpdateRecord replaces a record's contact fields and publishes
// record_updated with the full record.
func (m *Manager) UpdateRecord(ctx context.Context, sessionID, recordID string, actor policy.Actor, fields RecordFields) (*models.Record, error) {
	if _, err := m.mutableSession(ctx, sessionID, actor, policy.ActionUpdate); err != nil {
		return nil, err
	}
	r, err := m.store.RecordByID(ctx, sessionID, recordID)
	if err != nil {
		return nil, storeError(err, "record %s", recordID)
	}
	callsign, err := normalizeCallsign(fields.Callsign)
	if err != nil {
		return nil, err
	}
	fields.apply(r, callsign)
	if err := m.store.UpdateRecord(ctx, r); err != nil {
		return nil, storeError(err, "update record %s", recordID)
	}
	m.pub.Publish(sessionID, broadcast.RecordUpdated(*r))
	return r, nil
}

// DeleteRecord hard-deletes a record and publishes record_deleted.
func (m *Manager) DeleteRecord(ctx context.Context, sessionID, recordID string, actor policy.Actor) error {
	if _, err := m.mutableSession(ctx, sessionID, actor, policy.ActionDelete); err != nil {
		return err
	}
	if err := m.store.DeleteRecord(ctx, sessionID, recordID); err != nil {
		return storeError(err, "record %s", recordID)
	}
	m.pub.Publish(sessionID, broadcast.RecordDeleted(recordID))
	return nil
}

// GetRecords returns a session's records in chronological order.
func (m *Manager) GetRecords(ctx context.Context, sessionID string) ([]models.Record, error) {
	if _, err := m.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	records, err := m.store.Records(ctx, sessionID)
	if err != nil {
		return nil, storeError(err, "records for session %s", sessionID)
	}
	return records, nil
}

// mutableSession loads a session and applies the expiry then access gates.
// The expiry check is not atomic with the write that follows; a mutation
// racing the window boundary may land just after it.
func (m *Manager) mutableSession(ctx context.Context, id string, actor policy.Actor, action policy.Action) (*models.Session, error) {
	s, err := m.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy.IsExpired(s.SessionTime, m.now()) {
		return nil, errors.Wrapf(ErrExpired, "session %s closed at %s",
			id, policy.ExpiresAt(s.SessionTime).UTC().Format(time.RFC3339))
	}
	if !policy.CanMutate(actor, s, action) {
		m.log.WithField("session-id", id).WithField("actor", actor.ID).
			WithField("role", actor.Role).Debugf("%s denied", action)
		return nil, errors.Wrapf(ErrForbidden, "%s denied in session %s", action, id)
	}
	return s, nil
}

func (f RecordFields) apply(r *models.Record, callsign string) {
	r.Callsign = callsign
	r.QTH = optional(f.QTH)
	r.Equipment = optional(f.Equipment)
	r.Antenna = optional(f.Antenna)
	r.Power = optional(f.Power)
	r.Signal = optional(f.Signal)
	r.Report = optional(f.Report)
	r.Remarks = optional(f.Remarks)
}

func normalizeCallsign(s string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if c == "" {
		return "", validationError("callsign is required")
	}
	return c, nil
}

// optional trims s and maps the empty string to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
