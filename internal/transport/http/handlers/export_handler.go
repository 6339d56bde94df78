package handlers

import (
	"errors"
	"net/http"

	"github.com/matt-dinh13/empulse-sub000/internal/pkg/validate"
	authsvc "github.com/matt-dinh13/empulse-sub000/internal/services/auth"
	exportsvc "github.com/matt-dinh13/empulse-sub000/internal/services/exports"
	"github.com/matt-dinh13/empulse-sub000/internal/transport/http/dto"
	httperrors "github.com/matt-dinh13/empulse-sub000/internal/transport/http/errors"
)

type ExportHandler struct {
	service *exportsvc.Service
}

func NewExportHandler(service *exportsvc.Service) *ExportHandler {
	return &ExportHandler{service: service}
}

// Create handles POST /v1/admin/exports.
func (h *ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHENTICATED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "EXPORT_SERVICE_UNAVAILABLE", "export service is unavailable")
		return
	}

	var req dto.ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if !validate.Required(req.Month) {
		writeBadRequest(w, "VALIDATION_ERROR", "month is required")
		return
	}

	result, err := h.service.ExportMonth(r.Context(), identity.UserID, req.Month)
	if err != nil {
		if errors.Is(err, exportsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "month must be a past or current YYYY-MM")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to export votes")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ExportResponse{
		OK:        true,
		ObjectKey: result.ObjectKey,
		Rows:      result.Rows,
	})
}
