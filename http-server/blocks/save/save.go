package save

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"reactor-planner/http-server/response"
	"reactor-planner/internal/storage"
)

type BlockImporter interface {
	InsertBlocks(ctx context.Context, blocks []storage.ProductionBlock) error
}

type BlockRequest struct {
	ID           string  `json:"id"`
	OrderNumber  string  `json:"order_num"`
	ArticleCode  string  `json:"article_code"`
	ArticleDesc  string  `json:"article_desc"`
	BatchLabel   string  `json:"batch_label"`
	Units        float64 `json:"units"`
	UnitsOrdered float64 `json:"units_ordered"`
	UnitsServed  float64 `json:"units_served"`
	Deadline     string  `json:"deadline"` // YYYY-MM-DD, optional
	ClientName   string  `json:"client_name"`
}

type Response struct {
	Status string   `json:"status"`
	IDs    []string `json:"ids"`
}

// ImportBlocks answers POST /api/blocks: new blocks arrive from order intake
// as PENDING. Missing ids are generated. The batch is stored all or nothing.
func ImportBlocks(log *slog.Logger, importer BlockImporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.save.ImportBlocks"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req []BlockRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}
		if len(req) == 0 {
			response.BadRequest(w, r, "no blocks")
			return
		}

		blocks := make([]storage.ProductionBlock, 0, len(req))
		ids := make([]string, 0, len(req))
		for _, in := range req {
			b := storage.ProductionBlock{
				ID:           in.ID,
				OrderNumber:  in.OrderNumber,
				ArticleCode:  in.ArticleCode,
				ArticleDesc:  in.ArticleDesc,
				BatchLabel:   in.BatchLabel,
				Units:        in.Units,
				UnitsOrdered: in.UnitsOrdered,
				UnitsServed:  in.UnitsServed,
				Status:       storage.StatusPending,
				ClientName:   in.ClientName,
				Version:      1,
			}
			if b.ID == "" {
				b.ID = uuid.NewString()
			}
			if in.Deadline != "" {
				d, err := time.Parse(time.DateOnly, in.Deadline)
				if err != nil {
					response.BadRequest(w, r, "deadline must be YYYY-MM-DD")
					return
				}
				b.Deadline = &d
			}
			if err := b.CheckInvariants(); err != nil {
				response.BadRequest(w, r, err.Error())
				return
			}
			blocks = append(blocks, b)
			ids = append(ids, b.ID)
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if err := importer.InsertBlocks(ctx, blocks); err != nil {
			response.Error(w, r, log, err)
			return
		}

		log.Info("blocks imported", slog.Int("count", len(blocks)))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Status: response.StatusOK, IDs: ids})
	}
}
