package main

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"reactor-planner/http-server/autoplan"
	"reactor-planner/http-server/blocks/assign"
	getblocks "reactor-planner/http-server/blocks/get"
	"reactor-planner/http-server/blocks/production"
	saveblocks "reactor-planner/http-server/blocks/save"
	"reactor-planner/http-server/blocks/split"
	getcalendar "reactor-planner/http-server/calendar/get"
	savecalendar "reactor-planner/http-server/calendar/save"
	"reactor-planner/internal/config"
	"reactor-planner/internal/service"
	"reactor-planner/internal/storage/mysql"
)

func routes(cfg config.Config, log *slog.Logger, storage *mysql.Storage, scheduling *service.SchedulingService, loc *time.Location) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// blocks
	router.Get("/api/blocks", getblocks.ListBlocks(log, scheduling, loc))
	router.Post("/api/blocks", saveblocks.ImportBlocks(log, storage))
	router.Get("/api/blocks/siblings", getblocks.ListSiblings(log, scheduling, loc))
	router.Get("/api/blocks/{id}", getblocks.GetBlock(log, scheduling, loc))
	router.Post("/api/blocks/{id}/assign", assign.AssignBlock(log, scheduling, loc))
	router.Post("/api/blocks/{id}/unassign", assign.UnassignBlock(log, scheduling, loc))
	router.Post("/api/blocks/{id}/production", production.RecordProduction(log, scheduling, loc))
	router.Post("/api/blocks/{id}/split", split.SplitBlock(log, scheduling, loc))

	// bulk planning
	router.Post("/api/autoplan", autoplan.PreviewAutoPlan(log, scheduling))
	router.Post("/api/autoplan/commit", autoplan.CommitProposal(log, scheduling))

	// calendar and reference data
	router.Get("/api/calendar", getcalendar.GetCalendar(log, scheduling))
	router.Get("/api/reactors", getcalendar.GetReactors(log, scheduling))
	router.Post("/api/reactors", savecalendar.SaveReactor(log, storage))
	router.Get("/api/holidays", getcalendar.GetHolidays(log, scheduling))
	router.Post("/api/holidays", savecalendar.SaveHoliday(log, storage))
	router.Get("/api/maintenance", getcalendar.GetMaintenance(log, scheduling))
	router.Post("/api/maintenance", savecalendar.SaveMaintenance(log, storage))
	router.Get("/api/capacity", getcalendar.GetCapacity(log, scheduling))

	return router
}
