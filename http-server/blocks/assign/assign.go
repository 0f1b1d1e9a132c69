package assign

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
	"reactor-planner/internal/service"
	"reactor-planner/internal/storage"
)

type Assigner interface {
	Assign(ctx context.Context, id string, req service.AssignRequest) (planner.AssignResult, error)
	Unassign(ctx context.Context, id string) (storage.ProductionBlock, error)
}

type Request struct {
	Date        string        `json:"date"` // YYYY-MM-DD
	Reactor     string        `json:"reactor"`
	Shift       storage.Shift `json:"shift"`
	Acknowledge bool          `json:"acknowledge"`
}

type Response struct {
	Status    string             `json:"status"`
	Changed   bool               `json:"changed"`
	Block     response.Block     `json:"block"`
	Conflicts []planner.Conflict `json:"conflicts,omitempty"`
}

// AssignBlock answers POST /api/blocks/{id}/assign. Unacknowledged conflicts
// come back as 409 with the list; the client re-posts with acknowledge=true.
func AssignBlock(log *slog.Logger, assigner Assigner, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.assign.AssignBlock"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}
		if req.Reactor == "" || req.Date == "" {
			response.BadRequest(w, r, "date and reactor are required")
			return
		}

		date, err := planner.ParseDay(req.Date, loc)
		if err != nil {
			response.BadRequest(w, r, "date must be YYYY-MM-DD")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := assigner.Assign(ctx, id, service.AssignRequest{
			Date:        date,
			Reactor:     req.Reactor,
			Shift:       req.Shift,
			Acknowledge: req.Acknowledge,
		})
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{
			Status:    response.StatusOK,
			Changed:   res.Changed,
			Block:     response.FromBlock(res.Block, loc),
			Conflicts: res.Conflicts,
		})
	}
}

func UnassignBlock(log *slog.Logger, assigner Assigner, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.assign.UnassignBlock"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		b, err := assigner.Unassign(ctx, id)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, response.FromBlock(b, loc))
	}
}
