package production

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"reactor-planner/http-server/response"
	"reactor-planner/internal/planner"
	"reactor-planner/internal/storage"
)

type ProductionRecorder interface {
	RecordProduction(ctx context.Context, id string, p planner.Production) (storage.ProductionBlock, error)
}

// RecordProduction answers POST /api/blocks/{id}/production with a
// planner.Production body.
func RecordProduction(log *slog.Logger, recorder ProductionRecorder, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.production.RecordProduction"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		var req planner.Production
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		b, err := recorder.RecordProduction(ctx, id, req)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, response.FromBlock(b, loc))
	}
}
