package get

import (
	"context"
	"fmt"
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

type BlockProvider interface {
	ListBlocks(ctx context.Context, f storage.BlockFilter) ([]storage.ProductionBlock, error)
	GetBlock(ctx context.Context, id string) (storage.ProductionBlock, error)
	ListSiblings(ctx context.Context, orderNumber, articleCode string) (service.SiblingGroup, error)
}

type SiblingsResponse struct {
	Summary planner.GroupSummary `json:"summary"`
	Blocks  []response.Block     `json:"blocks"`
}

// ListBlocks answers GET /api/blocks?status=&reactor=&order_num=&article=&client=&from=&to=
func ListBlocks(log *slog.Logger, blocks BlockProvider, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.get.ListBlocks"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		f, err := parseFilter(r)
		if err != nil {
			response.BadRequest(w, r, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, err := blocks.ListBlocks(ctx, f)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, response.FromBlocks(list, loc))
	}
}

func parseFilter(r *http.Request) (storage.BlockFilter, error) {
	q := r.URL.Query()
	f := storage.BlockFilter{
		Status:      storage.BlockStatus(q.Get("status")),
		Reactor:     q.Get("reactor"),
		OrderNumber: q.Get("order_num"),
		ArticleCode: q.Get("article"),
		ClientName:  q.Get("client"),
	}
	if f.Status != "" && !f.Status.IsValid() {
		return storage.BlockFilter{}, fmt.Errorf("unknown status %q", f.Status)
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return storage.BlockFilter{}, fmt.Errorf("%s must be YYYY-MM-DD", p.name)
		}
		*p.dst = &t
	}
	return f, nil
}

func GetBlock(log *slog.Logger, blocks BlockProvider, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.get.GetBlock"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		b, err := blocks.GetBlock(ctx, id)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, response.FromBlock(b, loc))
	}
}

// ListSiblings answers GET /api/blocks/siblings?order_num=&article=
func ListSiblings(log *slog.Logger, blocks BlockProvider, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.get.ListSiblings"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		orderNum := r.URL.Query().Get("order_num")
		article := r.URL.Query().Get("article")
		if orderNum == "" || article == "" {
			response.BadRequest(w, r, "order_num and article are required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		group, err := blocks.ListSiblings(ctx, orderNum, article)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, SiblingsResponse{Summary: group.Summary, Blocks: response.FromBlocks(group.Blocks, loc)})
	}
}
