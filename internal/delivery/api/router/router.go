// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"censo/config"
	"censo/internal/delivery/api/middleware"
	"censo/internal/delivery/api/router/handler"
	"censo/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	SurveyHandler  *handler.SurveyHandler
	DraftHandler   *handler.DraftHandler
	AuthMiddleware *middleware.AuthMiddleware
	Registry       *prometheus.Registry
	Config         *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	surveyHandler  *handler.SurveyHandler
	draftHandler   *handler.DraftHandler
	authMiddleware *middleware.AuthMiddleware
	registry       *prometheus.Registry
	config         *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		surveyHandler:  params.SurveyHandler,
		draftHandler:   params.DraftHandler,
		authMiddleware: params.AuthMiddleware,
		registry:       params.Registry,
		config:         params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	if r.config.Metrics.Enabled {
		e.GET(r.config.Metrics.Path, echo.WrapHandler(metrics.Handler(r.registry)))
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(r.authMiddleware.Authenticate)

	surveys := apiV1.Group("/surveys")
	{
		surveys.GET("", r.surveyHandler.ListSurveys)
		surveys.POST("", r.surveyHandler.CreateSurvey)
		surveys.GET("/export", r.surveyHandler.ExportSurveys)
		surveys.POST("/scan", r.surveyHandler.ScanFamilyCard)
		surveys.GET("/:id", r.surveyHandler.GetSurvey)
		surveys.DELETE("/:id", r.surveyHandler.DeleteSurvey)
		surveys.GET("/:id/qr", r.surveyHandler.FamilyCard)
	}

	// Stage-based drafts; :id is the draft id on these routes
	{
		surveys.POST("/drafts", r.draftHandler.CreateDraft)
		surveys.GET("/drafts", r.draftHandler.ListDrafts)
		surveys.GET("/drafts/:id", r.draftHandler.GetDraft)
		surveys.PUT("/:id/stages/:n", r.draftHandler.SaveStage)
		surveys.POST("/:id/complete", r.draftHandler.Complete)
		surveys.POST("/:id/cancel", r.draftHandler.Cancel)
		surveys.POST("/:id/members", r.draftHandler.CreateMember)
		surveys.PUT("/:id/members/:memberId", r.draftHandler.UpdateMember)
		surveys.DELETE("/:id/members/:memberId", r.draftHandler.DeleteMember)
		surveys.POST("/:id/members/:memberId/restore", r.draftHandler.RestoreMember)
		surveys.POST("/:id/auto-save", r.draftHandler.SaveAutoSave)
		surveys.GET("/:id/auto-save", r.draftHandler.GetAutoSave)
	}
}
