package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/matt-dinh13/empulse-sub000/internal/domain/enums"
	pgrepo "github.com/matt-dinh13/empulse-sub000/internal/repo/postgres"
)

var ErrValidation = fmt.Errorf("invalid export request")

type VoteLister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]pgrepo.VoteRecord, error)
}

type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

type AuditStore interface {
	Record(ctx context.Context, tx pgx.Tx, actorID int64, action, entityRef string, payload map[string]any) error
}

type Result struct {
	ObjectKey string
	Rows      int
	From      time.Time
	To        time.Time
}

type Dependencies struct {
	Votes   VoteLister
	Storage ObjectStore
	Audit   AuditStore
	Logger  *zap.Logger
}

// Service produces monthly CSV exports of recognition activity and stores
// them as report objects for the admin tooling to download.
type Service struct {
	votes   VoteLister
	storage ObjectStore
	audit   AuditStore
	logger  *zap.Logger
	now     func() time.Time

	newObjectID func() string
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		votes:       deps.Votes,
		storage:     deps.Storage,
		audit:       deps.Audit,
		logger:      logger,
		now:         time.Now,
		newObjectID: uuid.NewString,
	}
}

// ExportMonth writes every vote recorded in the given month ("2006-01") to a
// CSV object and records the export in the audit log. Future months are
// rejected.
func (s *Service) ExportMonth(ctx context.Context, actorID int64, month string) (Result, error) {
	if actorID <= 0 {
		return Result{}, ErrValidation
	}
	if s.votes == nil || s.storage == nil || s.audit == nil {
		return Result{}, fmt.Errorf("export dependencies are not configured")
	}

	from, err := time.ParseInLocation("2006-01", month, time.UTC)
	if err != nil {
		return Result{}, ErrValidation
	}
	if from.After(s.now().UTC()) {
		return Result{}, ErrValidation
	}
	to := from.AddDate(0, 1, 0)

	votes, err := s.votes.ListBetween(ctx, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("list votes for export: %w", err)
	}

	body, err := renderCSV(votes)
	if err != nil {
		return Result{}, err
	}

	key := fmt.Sprintf("exports/votes-%s-%s.csv", month, s.newObjectID())
	if err := s.storage.Upload(ctx, key, body, "text/csv"); err != nil {
		return Result{}, err
	}

	if err := s.audit.Record(ctx, nil, actorID,
		string(enums.AuditActionVotesExported),
		fmt.Sprintf("export:%s", month),
		map[string]any{
			"object_key": key,
			"rows":       len(votes),
			"month":      month,
		},
	); err != nil {
		return Result{}, err
	}

	s.logger.Info("votes exported",
		zap.String("month", month),
		zap.String("object_key", key),
		zap.Int("rows", len(votes)),
	)

	return Result{
		ObjectKey: key,
		Rows:      len(votes),
		From:      from,
		To:        to,
	}, nil
}

func renderCSV(votes []pgrepo.VoteRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"vote_id", "sender_id", "receiver_id", "points", "message", "created_at"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, v := range votes {
		row := []string{
			strconv.FormatInt(v.ID, 10),
			strconv.FormatInt(v.SenderID, 10),
			strconv.FormatInt(v.ReceiverID, 10),
			strconv.Itoa(v.PointsAwarded),
			v.Message,
			v.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
