package autoplan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"reactor-planner/http-server/response"
	"reactor-planner/internal/planner"
	"reactor-planner/internal/service"
)

type Planner interface {
	AutoPlan(ctx context.Context, ids []string, horizonDays int) (planner.Proposal, error)
	Commit(ctx context.Context, p planner.Proposal) (service.CommitResult, error)
}

type PreviewRequest struct {
	IDs         []string `json:"ids"`
	HorizonDays int      `json:"horizon_days"`
}

type PreviewResponse struct {
	Status    string           `json:"status"`
	Exhausted bool             `json:"exhausted"`
	Proposal  planner.Proposal `json:"proposal"`
}

type CommitResponse struct {
	Status string               `json:"status"`
	Result service.CommitResult `json:"result"`
}

// PreviewAutoPlan answers POST /api/autoplan. The proposal is only
// computed; an empty body plans every pending block.
func PreviewAutoPlan(log *slog.Logger, p Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.autoplan.PreviewAutoPlan"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PreviewRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}
		if req.HorizonDays < 0 {
			response.BadRequest(w, r, "horizon_days must not be negative")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		proposal, err := p.AutoPlan(ctx, req.IDs, req.HorizonDays)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, PreviewResponse{
			Status:    response.StatusOK,
			Exhausted: proposal.Exhausted(),
			Proposal:  proposal,
		})
	}
}

// CommitProposal answers POST /api/autoplan/commit with a (possibly edited)
// proposal. Per-block failures are part of a 200 response.
func CommitProposal(log *slog.Logger, p Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.autoplan.CommitProposal"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var proposal planner.Proposal
		if err := render.DecodeJSON(r.Body, &proposal); err != nil {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}
		if len(proposal.Entries) == 0 {
			response.BadRequest(w, r, "proposal has no entries")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		res, err := p.Commit(ctx, proposal)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		log.Info("proposal committed",
			slog.Int("committed", len(res.Committed)),
			slog.Int("failed", len(res.Failed)),
		)

		render.JSON(w, r, CommitResponse{Status: response.StatusOK, Result: res})
	}
}
