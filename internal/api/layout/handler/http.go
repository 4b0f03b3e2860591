package layoutHandler

import (
	layoutService "LayoutGolang/internal/api/layout/service"
	"LayoutGolang/internal/middleware"
	"LayoutGolang/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type LayoutHandler struct {
	log           *logrus.Logger
	validator     *validator.Validate
	middleware    middleware.Middleware
	layoutService layoutService.ILayoutService
	utils         utils.IUtils
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	layoutService layoutService.ILayoutService,
	utils utils.IUtils,
) *LayoutHandler {
	return &LayoutHandler{
		log:           log,
		validator:     validate,
		middleware:    middleware,
		layoutService: layoutService,
		utils:         utils,
	}
}

func (h *LayoutHandler) Start(srv fiber.Router) {
	layout := srv.Group("/layout")

	layout.Post("/optimize", h.middleware.NewRateLimiter, h.OptimizeLayout)
	layout.Get("/runs", h.middleware.NewTokenMiddleware, h.GetRuns)
	layout.Get("/runs/:id", h.middleware.NewTokenMiddleware, h.GetRunByID)
	layout.Get("/runs/:id/status", h.GetRunStatus)

	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	layout.Use("/progress/ws", wsMiddleware)
	layout.Get("/progress/ws", websocket.New(h.handleProgressWebSocket))
}
