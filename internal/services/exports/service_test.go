package exports

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/matt-dinh13/empulse-sub000/internal/repo/postgres"
)

type voteListerStub struct {
	votes []pgrepo.VoteRecord
	err   error
	from  time.Time
	to    time.Time
}

func (s *voteListerStub) ListBetween(_ context.Context, from, to time.Time) ([]pgrepo.VoteRecord, error) {
	s.from = from
	s.to = to
	if s.err != nil {
		return nil, s.err
	}
	return s.votes, nil
}

type objectStoreStub struct {
	key         string
	body        []byte
	contentType string
	err         error
	calls       int
}

func (s *objectStoreStub) Upload(_ context.Context, key string, body []byte, contentType string) error {
	s.calls++
	s.key = key
	s.body = body
	s.contentType = contentType
	return s.err
}

type auditStoreStub struct {
	action    string
	entityRef string
	payload   map[string]any
	calls     int
}

func (s *auditStoreStub) Record(_ context.Context, _ pgx.Tx, _ int64, action, entityRef string, payload map[string]any) error {
	s.calls++
	s.action = action
	s.entityRef = entityRef
	s.payload = payload
	return nil
}

func newExportService(votes *voteListerStub, store *objectStoreStub, audit *auditStoreStub) *Service {
	svc := NewService(Dependencies{
		Votes:   votes,
		Storage: store,
		Audit:   audit,
	})
	svc.now = func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	}
	svc.newObjectID = func() string { return "fixed-object-id" }
	return svc
}

func TestExportMonthWritesCSVAndAudits(t *testing.T) {
	votes := &voteListerStub{votes: []pgrepo.VoteRecord{
		{
			ID:            7,
			SenderID:      101,
			ReceiverID:    202,
			Message:       "great incident writeup, saved us hours",
			PointsAwarded: 10,
			CreatedAt:     time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:            8,
			SenderID:      202,
			ReceiverID:    101,
			Message:       "thanks for the onboarding session",
			PointsAwarded: 10,
			CreatedAt:     time.Date(2026, 8, 20, 16, 0, 0, 0, time.UTC),
		},
	}}
	store := &objectStoreStub{}
	audit := &auditStoreStub{}
	svc := newExportService(votes, store, audit)

	result, err := svc.ExportMonth(context.Background(), 1, "2026-08")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if result.Rows != 2 {
		t.Fatalf("unexpected row count: got %d want 2", result.Rows)
	}
	wantFrom := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if !votes.from.Equal(wantFrom) || !votes.to.Equal(wantTo) {
		t.Fatalf("unexpected window: from=%v to=%v", votes.from, votes.to)
	}

	if store.key != "exports/votes-2026-08-fixed-object-id.csv" {
		t.Fatalf("unexpected object key: %s", store.key)
	}
	if store.contentType != "text/csv" {
		t.Fatalf("unexpected content type: %s", store.contentType)
	}
	lines := strings.Split(strings.TrimSpace(string(store.body)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d lines", len(lines))
	}
	if lines[0] != "vote_id,sender_id,receiver_id,points,message,created_at" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "7,101,202,10,") {
		t.Fatalf("unexpected first row: %s", lines[1])
	}

	if audit.calls != 1 {
		t.Fatalf("expected one audit entry, got %d", audit.calls)
	}
	if audit.entityRef != "export:2026-08" {
		t.Fatalf("unexpected audit entity ref: %s", audit.entityRef)
	}
	if got, ok := audit.payload["object_key"].(string); !ok || got != store.key {
		t.Fatalf("audit payload must carry the object key, got %v", audit.payload["object_key"])
	}
}

func TestExportMonthRejectsBadInput(t *testing.T) {
	svc := newExportService(&voteListerStub{}, &objectStoreStub{}, &auditStoreStub{})

	cases := []struct {
		name    string
		actorID int64
		month   string
	}{
		{"zero actor", 0, "2026-08"},
		{"garbage month", 1, "aug-2026"},
		{"future month", 1, "2026-10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.ExportMonth(context.Background(), tc.actorID, tc.month); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestExportMonthSkipsAuditOnUploadFailure(t *testing.T) {
	store := &objectStoreStub{err: errors.New("bucket unavailable")}
	audit := &auditStoreStub{}
	svc := newExportService(&voteListerStub{}, store, audit)

	if _, err := svc.ExportMonth(context.Background(), 1, "2026-08"); err == nil {
		t.Fatalf("expected upload failure to surface")
	}
	if audit.calls != 0 {
		t.Fatalf("failed upload must not be audited, got %d entries", audit.calls)
	}
}
