// Package response holds the JSON shapes and error mapping shared by the
// HTTP handlers.
package response

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"reactor-planner/internal/planner"
	"reactor-planner/internal/storage"
)

const dateLayout = "2006-01-02"

type Response struct {
	Status    string             `json:"status"`
	Error     string             `json:"error,omitempty"`
	Conflicts []planner.Conflict `json:"conflicts,omitempty"`
}

const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusConflicts = "conflicts"
)

// StatusCode maps domain and storage errors onto HTTP statuses.
func StatusCode(err error) int {
	var pending *planner.ConflictsPendingError
	switch {
	case errors.As(err, &pending):
		return http.StatusConflict
	case errors.Is(err, planner.ErrNotFound),
		errors.Is(err, storage.ErrBlockNotFound),
		errors.Is(err, storage.ErrReactorNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, planner.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, storage.ErrBlockExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error writes err as JSON with the mapped status. Server-side failures are
// logged at error level and their detail is not sent to the client.
func Error(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	code := StatusCode(err)

	resp := Response{Status: StatusError, Error: err.Error()}
	var pending *planner.ConflictsPendingError
	if errors.As(err, &pending) {
		resp = Response{Status: StatusConflicts, Conflicts: pending.Conflicts}
	}

	if code == http.StatusInternalServerError {
		log.Error("request failed", slog.String("error", err.Error()))
		resp.Error = "internal error"
	} else {
		log.Info("request rejected", slog.Int("status", code), slog.String("error", err.Error()))
	}

	render.Status(r, code)
	render.JSON(w, r, resp)
}

func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Response{Status: StatusError, Error: msg})
}

// Block is the wire form of a production block; dates are YYYY-MM-DD.
type Block struct {
	ID             string              `json:"id"`
	OrderNumber    string              `json:"order_num"`
	ArticleCode    string              `json:"article_code"`
	ArticleDesc    string              `json:"article_desc"`
	BatchLabel     string              `json:"batch_label"`
	Units          float64             `json:"units"`
	UnitsOrdered   float64             `json:"units_ordered"`
	UnitsServed    float64             `json:"units_served"`
	Status         storage.BlockStatus `json:"status"`
	PlannedDate    *string             `json:"planned_date"`
	PlannedReactor *string             `json:"planned_reactor"`
	PlannedShift   *storage.Shift      `json:"planned_shift"`
	Deadline       *string             `json:"deadline"`
	ClientName     string              `json:"client_name"`
	RealKg         *float64            `json:"real_kg"`
	RealDuration   *int                `json:"real_duration"`
	OperatorNotes  string              `json:"operator_notes"`
	Version        int64               `json:"version"`
}

// FromBlock converts b; planned dates are read in loc, deadlines as written.
func FromBlock(b storage.ProductionBlock, loc *time.Location) Block {
	out := Block{
		ID:             b.ID,
		OrderNumber:    b.OrderNumber,
		ArticleCode:    b.ArticleCode,
		ArticleDesc:    b.ArticleDesc,
		BatchLabel:     b.BatchLabel,
		Units:          b.Units,
		UnitsOrdered:   b.UnitsOrdered,
		UnitsServed:    b.UnitsServed,
		Status:         b.Status,
		PlannedReactor: b.PlannedReactor,
		PlannedShift:   b.PlannedShift,
		ClientName:     b.ClientName,
		RealKg:         b.RealKg,
		RealDuration:   b.RealDuration,
		OperatorNotes:  b.OperatorNotes,
		Version:        b.Version,
	}
	if b.PlannedDate != nil {
		s := planner.DayOf(*b.PlannedDate, loc).String()
		out.PlannedDate = &s
	}
	if b.Deadline != nil {
		s := b.Deadline.Format(dateLayout)
		out.Deadline = &s
	}
	return out
}

func FromBlocks(blocks []storage.ProductionBlock, loc *time.Location) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, FromBlock(b, loc))
	}
	return out
}
