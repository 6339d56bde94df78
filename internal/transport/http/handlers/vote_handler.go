package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/matt-dinh13/empulse-sub000/internal/domain/enums"
	pgrepo "github.com/matt-dinh13/empulse-sub000/internal/repo/postgres"
	authsvc "github.com/matt-dinh13/empulse-sub000/internal/services/auth"
	votesvc "github.com/matt-dinh13/empulse-sub000/internal/services/votes"
	"github.com/matt-dinh13/empulse-sub000/internal/transport/http/dto"
	httperrors "github.com/matt-dinh13/empulse-sub000/internal/transport/http/errors"
)

type VoteHandler struct {
	service *votesvc.Service
}

func NewVoteHandler(service *votesvc.Service) *VoteHandler {
	return &VoteHandler{service: service}
}

// Create handles POST /v1/votes.
func (h *VoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "VOTE_SERVICE_UNAVAILABLE", "vote service is unavailable")
		return
	}

	var req dto.VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.ReceiverID <= 0 || strings.TrimSpace(req.Message) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "receiver_id and message are required")
		return
	}

	result, err := h.service.Issue(r.Context(), identity.UserID, req.ReceiverID, req.Message, req.TagIDs)
	if err != nil {
		writeVoteError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.VoteResponse{
		OK:             true,
		Vote:           mapVote(result.Vote),
		QuotaRemaining: result.QuotaRemaining,
		IsReciprocal:   result.IsReciprocal,
	})
}

func writeVoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, votesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid vote request")
	case errors.Is(err, votesvc.ErrSelfOrManagerTarget):
		writeBadRequest(w, "SELF_OR_MANAGER_TARGET", "cannot recognize yourself or your direct manager")
	case errors.Is(err, votesvc.ErrReceiverInactive):
		writeNotFound(w, "RECEIVER_INACTIVE_OR_NOT_FOUND", "receiver is inactive or not found")
	case errors.Is(err, votesvc.ErrWeeklyLimit):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
			Code:    "WEEKLY_LIMIT",
			Message: "weekly vote limit reached",
		})
	case errors.Is(err, votesvc.ErrPersonLimit):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
			Code:    "PERSON_LIMIT_OR_COOLDOWN",
			Message: "monthly limit for this person reached",
		})
	case errors.Is(err, votesvc.ErrSameTeamLimit):
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
			Code:    "SAME_TEAM_LIMIT",
			Message: "same-team recognition share reached",
		})
	case errors.Is(err, votesvc.ErrInsufficientQuota):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "INSUFFICIENT_QUOTA",
			Message: "monthly vote quota exhausted",
		})
	default:
		if cd, ok := votesvc.IsCooldown(err); ok {
			until := cd.Until
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "PERSON_LIMIT_OR_COOLDOWN",
				Message:       "cooldown is active for this person",
				CooldownUntil: &until,
				RemainingDays: cd.RemainingDays,
			})
			return
		}
		if tf, ok := votesvc.IsTooFast(err); ok {
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "RATE_LIMITED",
				Message:       "too many vote attempts, slow down",
				RetryAfterSec: tf.RetryAfter(),
			})
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to process vote")
	}
}

// List handles GET /v1/votes?direction=sent|received&page=&limit=.
func (h *VoteHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "VOTE_SERVICE_UNAVAILABLE", "vote service is unavailable")
		return
	}

	direction, ok := enums.ParseVoteDirection(r.URL.Query().Get("direction"))
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "direction must be sent or received")
		return
	}
	page := intQueryParam(r, "page")
	limit := intQueryParam(r, "limit")

	result, err := h.service.List(r.Context(), identity.UserID, direction, page, limit)
	if err != nil {
		if errors.Is(err, votesvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid list request")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to list votes")
		return
	}

	items := make([]dto.VoteItem, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, mapVote(item))
	}

	httperrors.Write(w, http.StatusOK, dto.VoteListResponse{
		Items: items,
		Page:  result.Page,
		Limit: result.Limit,
		Total: result.Total,
	})
}

func mapVote(rec pgrepo.VoteRecord) dto.VoteItem {
	return dto.VoteItem{
		ID:            rec.ID,
		SenderID:      rec.SenderID,
		ReceiverID:    rec.ReceiverID,
		Message:       rec.Message,
		PointsAwarded: rec.PointsAwarded,
		CreatedAt:     rec.CreatedAt,
	}
}

func intQueryParam(r *http.Request, name string) int {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
