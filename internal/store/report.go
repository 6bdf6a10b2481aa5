// Package store persists report records as JSON documents in object storage.
//
// Each record lives at key report_<id>. Create writes a new record once and
// fails if the key is taken; Put overwrites unconditionally.
// Status changes go through Advance, which refuses to move a record
// backwards or skip a step.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/DukeRupert/radai/internal/domain"
	"github.com/DukeRupert/radai/internal/storage"
)

var (
	// ErrReportNotFound is returned when no record exists for an ID.
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid report status transition")

	// ErrReportExists is returned by Create when the ID is already taken.
	ErrReportExists = errors.New("report already exists")
)

// MaxRecordSize bounds a serialized record.
const MaxRecordSize = 1 << 20

// ReportStore reads and writes report records.
type ReportStore struct {
	storage storage.Storage
	logger  *slog.Logger

	// mu serializes Advance within this process. Writers in other processes
	// sharing the same backend can still race; the later Put wins.
	mu sync.Mutex
}

// New creates a ReportStore over any storage backend.
func New(s storage.Storage, logger *slog.Logger) *ReportStore {
	return &ReportStore{storage: s, logger: logger}
}

// Create writes a new record. It fails with ErrReportExists when a record
// with the same ID is already stored.
func (s *ReportStore) Create(ctx context.Context, record *domain.ReportRecord) error {
	err := s.write(ctx, "report.create", record, false)
	if storage.IsKeyExists(err) {
		return fmt.Errorf("%w: %s", ErrReportExists, record.ID)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("report created", "report_id", record.ID)
	return nil
}

// Put writes the record, replacing any existing one with the same ID.
func (s *ReportStore) Put(ctx context.Context, record *domain.ReportRecord) error {
	if err := s.write(ctx, "report.put", record, true); err != nil {
		return err
	}
	s.logger.Debug("report stored", "report_id", record.ID, "status", record.Status)
	return nil
}

func (s *ReportStore) write(ctx context.Context, op string, record *domain.ReportRecord, overwrite bool) error {
	if record == nil || record.ID == "" {
		return domain.Invalid(op, "report ID is required")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", record.ID, err)
	}

	err = s.storage.Put(ctx, storage.ReportKey(record.ID), bytes.NewReader(data), storage.PutOptions{
		ContentType: storage.ContentTypeJSON,
		MaxSize:     MaxRecordSize,
		Overwrite:   overwrite,
	})
	if storage.IsTooLarge(err) {
		return domain.Wrap(err, domain.ETOOLARGE, op, "Report is too large to store")
	}
	if err != nil {
		return fmt.Errorf("write report %s: %w", record.ID, err)
	}
	return nil
}

// Get reads the record for id. It returns ErrReportNotFound when absent.
func (s *ReportStore) Get(ctx context.Context, id string) (*domain.ReportRecord, error) {
	if id == "" {
		return nil, domain.Invalid("report.get", "report ID is required")
	}

	rc, _, err := s.storage.Get(ctx, storage.ReportKey(id))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
		}
		if storage.IsInvalidKey(err) {
			return nil, domain.Invalid("report.get", "invalid report ID")
		}
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxRecordSize+1))
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", id, err)
	}

	var record domain.ReportRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &record, nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *ReportStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.Invalid("report.delete", "report ID is required")
	}
	if err := s.storage.Delete(ctx, storage.ReportKey(id)); err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	return nil
}

// Advance re-reads the record, moves it to target, and writes it back.
//
// Allowed: analyzed -> approved, approved -> notified. Anything else fails
// with ErrInvalidTransition and leaves the stored record untouched.
func (s *ReportStore) Advance(ctx context.Context, id string, target domain.ReportStatus) (*domain.ReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := record.Status
	if err := record.TransitionTo(target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	if err := s.Put(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("report status changed", "report_id", id, "from", from, "to", target)
	return record, nil
}
