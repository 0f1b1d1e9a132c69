package get

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"reactor-planner/http-server/response"
	"reactor-planner/internal/planner"
	"reactor-planner/internal/storage"
)

type CalendarProvider interface {
	GetReactors(ctx context.Context, activeOnly bool) ([]storage.Reactor, error)
	GetHolidays(ctx context.Context) ([]storage.Holiday, error)
	GetMaintenanceWindows(ctx context.Context, reactorID string) ([]storage.MaintenanceWindow, error)
	MonthlyCapacity(ctx context.Context, year int, month time.Month) ([]planner.ReactorCapacity, error)
}

type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type MaintenanceWindow struct {
	ID        int64  `json:"id"`
	ReactorID string `json:"reactor_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

type CalendarResponse struct {
	Reactors    []storage.Reactor   `json:"reactors"`
	Holidays    []Holiday           `json:"holidays"`
	Maintenance []MaintenanceWindow `json:"maintenance"`
}

type CapacityResponse struct {
	Year     int                       `json:"year"`
	Month    int                       `json:"month"`
	Reactors []planner.ReactorCapacity `json:"reactors"`
}

func toHolidays(hs []storage.Holiday) []Holiday {
	out := make([]Holiday, 0, len(hs))
	for _, h := range hs {
		out = append(out, Holiday{Date: planner.DateOnly(h.Date).String(), Name: h.Name})
	}
	return out
}

func toWindows(ws []storage.MaintenanceWindow) []MaintenanceWindow {
	out := make([]MaintenanceWindow, 0, len(ws))
	for _, w := range ws {
		out = append(out, MaintenanceWindow{
			ID:        w.ID,
			ReactorID: w.ReactorID,
			StartDate: planner.DateOnly(w.StartDate).String(),
			EndDate:   planner.DateOnly(w.EndDate).String(),
			Reason:    w.Reason,
		})
	}
	return out
}

// GetCalendar answers GET /api/calendar with reactors, holidays and all
// maintenance windows in one response.
func GetCalendar(log *slog.Logger, provider CalendarProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.get.GetCalendar"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			reactors []storage.Reactor
			holidays []storage.Holiday
			windows  []storage.MaintenanceWindow
		)

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			reactors, err = provider.GetReactors(gCtx, false)
			return err
		})
		g.Go(func() error {
			var err error
			holidays, err = provider.GetHolidays(gCtx)
			return err
		})
		g.Go(func() error {
			var err error
			windows, err = provider.GetMaintenanceWindows(gCtx, "")
			return err
		})
		if err := g.Wait(); err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, CalendarResponse{
			Reactors:    reactors,
			Holidays:    toHolidays(holidays),
			Maintenance: toWindows(windows),
		})
	}
}

// GetReactors answers GET /api/reactors?active=true
func GetReactors(log *slog.Logger, provider CalendarProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.get.GetReactors"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		activeOnly := false
		if v := r.URL.Query().Get("active"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.BadRequest(w, r, "active must be a boolean")
				return
			}
			activeOnly = b
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		reactors, err := provider.GetReactors(ctx, activeOnly)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, reactors)
	}
}

func GetHolidays(log *slog.Logger, provider CalendarProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.get.GetHolidays"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		holidays, err := provider.GetHolidays(ctx)
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, toHolidays(holidays))
	}
}

// GetMaintenance answers GET /api/maintenance?reactor=
func GetMaintenance(log *slog.Logger, provider CalendarProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.get.GetMaintenance"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		windows, err := provider.GetMaintenanceWindows(ctx, r.URL.Query().Get("reactor"))
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, toWindows(windows))
	}
}

// GetCapacity answers GET /api/capacity?year=2026&month=3
func GetCapacity(log *slog.Logger, provider CalendarProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.calendar.get.GetCapacity"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil {
			response.BadRequest(w, r, "year is required")
			return
		}
		month, err := strconv.Atoi(r.URL.Query().Get("month"))
		if err != nil {
			response.BadRequest(w, r, "month is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		caps, err := provider.MonthlyCapacity(ctx, year, time.Month(month))
		if err != nil {
			response.Error(w, r, log, err)
			return
		}

		render.JSON(w, r, CapacityResponse{Year: year, Month: month, Reactors: caps})
	}
}
