package layoutHandler

import (
	"LayoutGolang/internal/api/layout"
	contextPkg "LayoutGolang/pkg/context"
	"LayoutGolang/pkg/handlerUtil"
	jwtPkg "LayoutGolang/pkg/jwt"
	"LayoutGolang/pkg/log"
	"errors"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
	"time"
)

// optimizeTimeout bounds a full run: five minutes of polling per candidate
// plus generation and validation overhead.
const optimizeTimeout = 15 * time.Minute

func (h *LayoutHandler) OptimizeLayout(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), optimizeTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing layout optimization request")

	var req layout.OptimizeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	image, err := ctx.FormFile("image")
	if err != nil {
		return errHandler.Handle(ctx, requestID, layout.ErrMissingImage, ctx.Path(), "read_form_file")
	}

	if err := h.utils.ValidateImageFile(image); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	// Attribution is optional on this open route: a valid bearer token
	// fills requested_by, anything else leaves it empty.
	requestedBy := ""
	if operator, opErr := jwtPkg.OperatorFromRequest(ctx); opErr == nil {
		requestedBy = operator.ID
	}

	res, err := h.layoutService.OptimizeLayout(c, req, image, requestedBy)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "optimize_layout")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, res)
	}
}

func (h *LayoutHandler) GetRuns(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing run history request")

	operator, err := jwtPkg.GetOperatorData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	limit := ctx.QueryInt("limit", 0)
	offset := ctx.QueryInt("offset", 0)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"operator":   operator.ID,
		"limit":      limit,
		"offset":     offset,
	}).Debug("Fetching run history")

	runs, err := h.layoutService.GetRuns(c, limit, offset)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_runs")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, runs)
	}
}

func (h *LayoutHandler) GetRunByID(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing run detail request")

	if _, err := jwtPkg.GetOperatorData(ctx); err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("run ID is required"), ctx.Path())
	}

	run, err := h.layoutService.GetRunByID(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_run")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, run)
	}
}

func (h *LayoutHandler) GetRunStatus(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("run ID is required"), ctx.Path())
	}

	status, err := h.layoutService.GetRunStatus(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_run_status")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, status)
	}
}
