package save

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"reactor-planner/http-server/response"
	"reactor-planner/internal/storage"
)

type CalendarSaver interface {
	SaveReactor(ctx context.Context, r storage.Reactor) error
	SaveHoliday(ctx context.Context, h storage.Holiday) error
	SaveMaintenanceWindow(ctx context.Context, w storage.MaintenanceWindow) (int64, error)
}

type HolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type MaintenanceRequest struct {
	ReactorID string `json:"reactor_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

type CreatedResponse struct {
	Status string `json:"status"`
	ID     int64  `json:"id,omitempty"`
}

// SaveReactor creates or updates a reactor by name.
func SaveReactor(log *slog.Logger, saver CalendarSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.save.SaveReactor"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req storage.Reactor
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			response.BadRequest(w, r, "name is required")
			return
		}
		if req.Capacity < 0 || req.DailyTarget < 0 {
			response.BadRequest(w, r, "capacity and daily_target must not be negative")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := saver.SaveReactor(ctx, req); err != nil {
			response.Error(w, r, log, err)
			return
		}

		log.Info("reactor saved", slog.String("reactor", req.Name), slog.Bool("active", req.IsActive))

		render.JSON(w, r, CreatedResponse{Status: response.StatusOK})
	}
}

func SaveHoliday(log *slog.Logger, saver CalendarSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.save.SaveHoliday"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req HolidayRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			response.BadRequest(w, r, "date must be YYYY-MM-DD")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := saver.SaveHoliday(ctx, storage.Holiday{Date: date, Name: req.Name}); err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, CreatedResponse{Status: response.StatusOK})
	}
}

// SaveMaintenance adds a maintenance window. Both ends are inclusive days.
func SaveMaintenance(log *slog.Logger, saver CalendarSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.save.SaveMaintenance"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req MaintenanceRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("failed to decode request body", slog.String("error", err.Error()))
			response.BadRequest(w, r, "invalid JSON")
			return
		}
		if req.ReactorID == "" {
			response.BadRequest(w, r, "reactor_id is required")
			return
		}
		start, err := time.Parse(time.DateOnly, req.StartDate)
		if err != nil {
			response.BadRequest(w, r, "start_date must be YYYY-MM-DD")
			return
		}
		end, err := time.Parse(time.DateOnly, req.EndDate)
		if err != nil {
			response.BadRequest(w, r, "end_date must be YYYY-MM-DD")
			return
		}
		if end.Before(start) {
			response.BadRequest(w, r, "end_date is before start_date")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		id, err := saver.SaveMaintenanceWindow(ctx, storage.MaintenanceWindow{
			ReactorID: req.ReactorID,
			StartDate: start,
			EndDate:   end,
			Reason:    req.Reason,
		})
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		log.Info("maintenance window saved", slog.Int64("id", id), slog.String("reactor", req.ReactorID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreatedResponse{Status: response.StatusOK, ID: id})
	}
}
