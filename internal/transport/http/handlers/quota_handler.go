package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/matt-dinh13/empulse-sub000/internal/services/auth"
	votesvc "github.com/matt-dinh13/empulse-sub000/internal/services/votes"
	"github.com/matt-dinh13/empulse-sub000/internal/transport/http/dto"
	httperrors "github.com/matt-dinh13/empulse-sub000/internal/transport/http/errors"
)

type QuotaHandler struct {
	service *votesvc.Service
}

func NewQuotaHandler(service *votesvc.Service) *QuotaHandler {
	return &QuotaHandler{service: service}
}

// Handle returns the caller's remaining vote quota for the current period.
func (h *QuotaHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "VOTE_SERVICE_UNAVAILABLE", "vote service is unavailable")
		return
	}

	view, err := h.service.Quota(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, votesvc.ErrValidation) {
			writeNotFound(w, "QUOTA_WALLET_NOT_FOUND", "no quota wallet for this user")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to read quota")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.QuotaResponse{
		Balance:     view.Balance,
		PeriodStart: view.PeriodStart,
		PeriodEnd:   view.PeriodEnd,
	})
}
