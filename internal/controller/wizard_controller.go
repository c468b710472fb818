package controller

import (
	"encoding/json"
	"fmt"

	"wiki-console-be/internal/dto"
	"wiki-console-be/internal/pkg/serverutils"
	"wiki-console-be/internal/service"
	internalWS "wiki-console-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IWizardController interface {
	RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler)
	Show(ctx *fiber.Ctx) error
	Open(ctx *fiber.Ctx) error
	Close(ctx *fiber.Ctx) error
	Advance(ctx *fiber.Ctx) error
	Retreat(ctx *fiber.Ctx) error
	ObserveKnowledgeBases(ctx *fiber.Ctx) error
	ListKnowledgeBases(ctx *fiber.Ctx) error
	Publish(ctx *fiber.Ctx) error
	ListEvents(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
}

type wizardController struct {
	service service.IWizardService
	hub     *internalWS.Hub
}

func NewWizardController(service service.IWizardService, hub *internalWS.Hub) IWizardController {
	return &wizardController{service: service, hub: hub}
}

func (c *wizardController) RegisterRoutes(r fiber.Router, jwtMiddleware fiber.Handler) {
	h := r.Group("/wizard/v1")
	// browsers cannot set headers on websocket upgrades; Stream checks the token itself
	h.Get("/ws", c.Stream)

	h.Use(jwtMiddleware)
	h.Get("/", c.Show)
	h.Post("/open", c.Open)
	h.Post("/close", c.Close)
	h.Post("/advance", c.Advance)
	h.Post("/retreat", c.Retreat)
	h.Get("/knowledge-bases", c.ListKnowledgeBases)
	h.Post("/knowledge-bases/observe", c.ObserveKnowledgeBases)
	h.Post("/publish", c.Publish)
	h.Get("/events", c.ListEvents)
}

func (c *wizardController) Show(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Snapshot(ctx.UserContext(), operatorID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show wizard", res))
}

func (c *wizardController) Open(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Open(ctx.UserContext(), operatorID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success open wizard", res))
}

func (c *wizardController) Close(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Close(ctx.UserContext(), operatorID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success close wizard", res))
}

// Advance takes the active step's form as the raw request body.
func (c *wizardController) Advance(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	// fasthttp reuses the body buffer after the handler returns
	form := append(json.RawMessage(nil), ctx.Body()...)

	res, err := c.service.Advance(ctx.UserContext(), operatorID, form)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success advance wizard", res))
}

func (c *wizardController) Retreat(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Retreat(ctx.UserContext(), operatorID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success retreat wizard", res))
}

func (c *wizardController) ObserveKnowledgeBases(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	var req dto.ObserveKnowledgeBasesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.ReportKnowledgeBases(ctx.UserContext(), operatorID, *req.Count); err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse[any]("Observation accepted", nil))
}

func (c *wizardController) ListKnowledgeBases(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.ListKnowledgeBases(ctx.UserContext(), operatorID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list knowledge bases", res))
}

func (c *wizardController) Publish(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Publish(ctx.UserContext(), operatorID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success publish knowledge base", res))
}

func (c *wizardController) ListEvents(ctx *fiber.Ctx) error {
	operatorID, err := serverutils.OperatorID(ctx)
	if err != nil {
		return err
	}

	var req dto.ListOnboardingEventsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ListEvents(ctx.UserContext(), operatorID, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list wizard events", res))
}

// Stream upgrades to a websocket that receives the operator's snapshots. The
// token comes from the "token" query or the Authorization header.
func (c *wizardController) Stream(ctx *fiber.Ctx) error {
	tokenStr := ctx.Query("token")
	if tokenStr == "" {
		if authHeader := ctx.Get("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	operatorID, err := serverutils.ParseOperatorToken(tokenStr)
	if err != nil {
		return err
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}

	snap, err := c.service.Snapshot(ctx.UserContext(), operatorID)
	if err != nil {
		return err
	}
	initial, err := internalWS.EncodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return websocket.New(func(conn *websocket.Conn) {
		internalWS.ServeWs(c.hub, conn, operatorID, initial)
	})(ctx)
}
