// Package store persists sessions and records. It is the only package that
// issues queries; callers see models and ErrNotFound, never gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/netlog/internal/models"
	"gorm.io/gorm"
)

// DefaultTimeout bounds every store call when none is configured.
const DefaultTimeout = 5 * time.Second

// ErrNotFound is returned when a session or record does not exist.
var ErrNotFound = errors.New("store: not found")

// SessionFilter narrows a session listing.
type SessionFilter struct {
	ControllerID string
}

// Store is the capability set the session log manager needs: insert,
// point lookup, ordered filtered scans, update, and delete.
type Store interface {
	InsertSession(ctx context.Context, s *models.Session) error
	SessionByID(ctx context.Context, id string) (*models.Session, error)
	Sessions(ctx context.Context, filter SessionFilter) ([]models.Session, error)
	UpdateSession(ctx context.Context, s *models.Session) error

	InsertRecord(ctx context.Context, r *models.Record) error
	RecordByID(ctx context.Context, sessionID, id string) (*models.Record, error)
	Records(ctx context.Context, sessionID string) ([]models.Record, error)
	UpdateRecord(ctx context.Context, r *models.Record) error
	DeleteRecord(ctx context.Context, sessionID, id string) error
}

// Gorm implements Store over a gorm connection.
type Gorm struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGorm wraps db. A non-positive timeout falls back to DefaultTimeout.
func NewGorm(db *gorm.DB, timeout time.Duration) *Gorm {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gorm{db: db, timeout: timeout}
}

// withTimeout scopes a query to the store's own deadline.
func (g *Gorm) withTimeout(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	return g.db.WithContext(ctx), cancel
}

// InsertSession creates a session row.
func (g *Gorm) InsertSession(ctx context.Context, s *models.Session) error {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	if err := tx.Create(s).Error; err != nil {
		return fmt.Errorf("store: insert session %s: %w", s.ID, err)
	}
	return nil
}

// SessionByID loads one session.
func (g *Gorm) SessionByID(ctx context.Context, id string) (*models.Session, error) {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	var s models.Session
	if err := tx.Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get session %s: %w", id, err)
	}
	return &s, nil
}

// Sessions lists sessions newest SessionTime first.
func (g *Gorm) Sessions(ctx context.Context, filter SessionFilter) ([]models.Session, error) {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	q := tx.Model(&models.Session{})
	if filter.ControllerID != "" {
		q = q.Where("controller_id = ?", filter.ControllerID)
	}
	var sessions []models.Session
	if err := q.Order("session_time DESC, id ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSession writes the session's editable display fields. It returns
// ErrNotFound when the session is gone.
func (g *Gorm) UpdateSession(ctx context.Context, s *models.Session) error {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	result := tx.Model(&models.Session{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
		"controller_name":      s.ControllerName,
		"controller_equipment": s.ControllerEquipment,
		"controller_antenna":   s.ControllerAntenna,
		"controller_qth":       s.ControllerQTH,
	})
	if result.Error != nil {
		return fmt.Errorf("store: update session %s: %w", s.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return g.ensureExists(tx, &models.Session{}, "session", s.ID, "id = ?", s.ID)
	}
	return nil
}

// InsertRecord creates a record row.
func (g *Gorm) InsertRecord(ctx context.Context, r *models.Record) error {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	if err := tx.Create(r).Error; err != nil {
		return fmt.Errorf("store: insert record %s: %w", r.ID, err)
	}
	return nil
}

// RecordByID loads one record, scoped to its session.
func (g *Gorm) RecordByID(ctx context.Context, sessionID, id string) (*models.Record, error) {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	var r models.Record
	if err := tx.Where("id = ? AND session_id = ?", id, sessionID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get record %s: %w", id, err)
	}
	return &r, nil
}

// Records lists a session's records in chronological order.
func (g *Gorm) Records(ctx context.Context, sessionID string) ([]models.Record, error) {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	var records []models.Record
	if err := tx.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("store: list records for %s: %w", sessionID, err)
	}
	return records, nil
}

// UpdateRecord writes a record's contact fields. SessionID and CreatedAt are
// never touched. It returns ErrNotFound when the record is gone, for
// example deleted after the caller loaded it.
func (g *Gorm) UpdateRecord(ctx context.Context, r *models.Record) error {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	result := tx.Model(&models.Record{}).
		Where("id = ? AND session_id = ?", r.ID, r.SessionID).
		Updates(map[string]interface{}{
			"callsign":  r.Callsign,
			"qth":       r.QTH,
			"equipment": r.Equipment,
			"antenna":   r.Antenna,
			"power":     r.Power,
			"signal":    r.Signal,
			"report":    r.Report,
			"remarks":   r.Remarks,
		})
	if result.Error != nil {
		return fmt.Errorf("store: update record %s: %w", r.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return g.ensureExists(tx, &models.Record{}, "record", r.ID, "id = ? AND session_id = ?", r.ID, r.SessionID)
	}
	return nil
}

// DeleteRecord hard-deletes a record.
func (g *Gorm) DeleteRecord(ctx context.Context, sessionID, id string) error {
	tx, cancel := g.withTimeout(ctx)
	defer cancel()
	result := tx.Where("id = ? AND session_id = ?", id, sessionID).Delete(&models.Record{})
	if result.Error != nil {
		return fmt.Errorf("store: delete record %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return nil
}

// ensureExists tells a vanished row from an update that changed nothing:
// mysql counts only changed rows as affected.
func (g *Gorm) ensureExists(tx *gorm.DB, model interface{}, kind, id string, query string, args ...interface{}) error {
	var n int64
	if err := tx.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		return fmt.Errorf("store: check %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
