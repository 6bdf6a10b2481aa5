package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/radai/internal/domain"
	"github.com/DukeRupert/radai/internal/storage"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ReportStore, *storage.MemoryStorage) {
	t.Helper()
	mem := storage.NewMemoryStorage()
	return New(mem, slog.New(slog.NewTextHandler(io.Discard, nil))), mem
}

func sampleRecord() *domain.ReportRecord {
	return domain.NewReportRecord(domain.NewReportParams{
		ID:           "1741944600000_k3j9x0p2q",
		PatientName:  "Jane Doe",
		PatientEmail: "jane@example.com",
		Findings: []domain.Finding{
			{Pathology: "Cardiomegaly", Confidence: 0.92, Description: "Enlarged heart", Severity: domain.SeverityModerate, AnatomicalLocation: "Mediastinum"},
			{Pathology: "Effusion", Confidence: 0.71, Description: "Small left effusion"},
		},
		Impression:            "Cardiomegaly with small effusion.",
		Recommendations:       []string{"Echocardiogram"},
		DifferentialDiagnosis: []string{"CHF", "Pericardial effusion"},
		UrgencyLevel:          domain.UrgencyUrgent,
		CreatedAt:             time.Date(2025, 3, 14, 9, 30, 15, 123000000, time.UTC),
	})
}

func TestReportStore_RoundTrip(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	want := sampleRecord()

	require.NoError(t, s.Put(ctx, want))
	assert.Equal(t, []string{"report_1741944600000_k3j9x0p2q"}, mem.Keys())

	got, err := s.Get(ctx, want.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestReportStore_RoundTripEmptyCollections(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	want := domain.NewReportRecord(domain.NewReportParams{ID: "empty", CreatedAt: time.Unix(0, 0).UTC()})

	require.NoError(t, s.Put(ctx, want))
	got, err := s.Get(ctx, "empty")
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestReportStore_GetNotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrReportNotFound))
}

func TestReportStore_GetInvalidID(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Get(context.Background(), "../../etc/passwd")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = s.Get(context.Background(), "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestReportStore_GetCorrupt(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, storage.ReportKey("bad"), strings.NewReader("{not json"), storage.PutOptions{}))

	_, err := s.Get(ctx, "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrReportNotFound))
}

func TestReportStore_PutOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	record := sampleRecord()
	require.NoError(t, s.Put(ctx, record))

	record.Status = domain.ReportStatusApproved
	require.NoError(t, s.Put(ctx, record))

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusApproved, got.Status)
}

func TestReportStore_PutRequiresID(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Put(context.Background(), &domain.ReportRecord{})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestReportStore_CreateOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	record := sampleRecord()
	require.NoError(t, s.Create(ctx, record))

	dup := sampleRecord()
	dup.Impression = "Overwritten"
	err := s.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrReportExists)

	got, err := s.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Impression, got.Impression)
}

func TestReportStore_CreateRequiresID(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Create(context.Background(), &domain.ReportRecord{})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestReportStore_PutTooLarge(t *testing.T) {
	s, _ := newTestStore(t)
	record := sampleRecord()
	record.Impression = strings.Repeat("x", MaxRecordSize)

	err := s.Put(context.Background(), record)
	assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
	assert.True(t, storage.IsTooLarge(err))
}

func TestReportStore_Advance(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.ReportStatus
		to      domain.ReportStatus
		wantErr bool
	}{
		{"analyzed to approved", domain.ReportStatusAnalyzed, domain.ReportStatusApproved, false},
		{"approved to notified", domain.ReportStatusApproved, domain.ReportStatusNotified, false},
		{"analyzed to notified", domain.ReportStatusAnalyzed, domain.ReportStatusNotified, true},
		{"notified to approved", domain.ReportStatusNotified, domain.ReportStatusApproved, true},
		{"approved to analyzed", domain.ReportStatusApproved, domain.ReportStatusAnalyzed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t)
			ctx := context.Background()
			record := sampleRecord()
			record.Status = tt.from
			require.NoError(t, s.Put(ctx, record))

			updated, err := s.Advance(ctx, record.ID, tt.to)

			stored, getErr := s.Get(ctx, record.ID)
			require.NoError(t, getErr)

			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
				assert.Nil(t, updated)
				assert.Equal(t, tt.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.Status)
			assert.Equal(t, tt.to, stored.Status)
			assert.Equal(t, record.AIConfidence, stored.AIConfidence)
		})
	}
}

func TestReportStore_AdvanceNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Advance(context.Background(), "missing", domain.ReportStatusApproved)
	assert.True(t, errors.Is(err, ErrReportNotFound))
}

func TestReportStore_AdvanceConcurrent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	record := sampleRecord()
	require.NoError(t, s.Put(ctx, record))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Advance(ctx, record.ID, domain.ReportStatusApproved); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestReportStore_Delete(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	record := sampleRecord()
	require.NoError(t, s.Put(ctx, record))

	require.NoError(t, s.Delete(ctx, record.ID))
	assert.Empty(t, mem.Keys())

	_, err := s.Get(ctx, record.ID)
	assert.True(t, errors.Is(err, ErrReportNotFound))
}
