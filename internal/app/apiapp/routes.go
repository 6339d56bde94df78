package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matt-dinh13/empulse-sub000/internal/domain/enums"
	authsvc "github.com/matt-dinh13/empulse-sub000/internal/services/auth"
	exportsvc "github.com/matt-dinh13/empulse-sub000/internal/services/exports"
	votesvc "github.com/matt-dinh13/empulse-sub000/internal/services/votes"
	"github.com/matt-dinh13/empulse-sub000/internal/transport/http/handlers"
)

type Dependencies struct {
	VoteService   *votesvc.Service
	ExportService *exportsvc.Service
	JWTManager    *authsvc.JWTManager
	Logger        *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	voteHandler := handlers.NewVoteHandler(deps.VoteService)
	quotaHandler := handlers.NewQuotaHandler(deps.VoteService)
	exportHandler := handlers.NewExportHandler(deps.ExportService)

	authMW := AuthMiddleware(deps.JWTManager, deps.Logger)
	adminRoleMW := RequireRole(string(enums.RoleAdmin))

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.With(authMW).Post("/votes", voteHandler.Create)
		r.With(authMW).Get("/votes", voteHandler.List)
		r.With(authMW).Get("/quota", quotaHandler.Handle)

		r.Route("/admin", func(r chi.Router) {
			r.With(authMW, adminRoleMW).Post("/exports", exportHandler.Create)
		})
	})
}
