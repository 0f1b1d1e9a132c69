package split

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"reactor-planner/http-server/response"
	"reactor-planner/internal/storage"
)

type Splitter interface {
	Split(ctx context.Context, id string) ([]storage.ProductionBlock, error)
}

type Response struct {
	Status   string           `json:"status"`
	Original string           `json:"original_id"`
	Siblings []response.Block `json:"siblings"`
}

func SplitBlock(log *slog.Logger, splitter Splitter, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.split.SplitBlock"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		siblings, err := splitter.Split(ctx, id)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Status:   response.StatusOK,
			Original: id,
			Siblings: response.FromBlocks(siblings, loc),
		})
	}
}
