package api

import (
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"github.com/yourorg/connecthub/internal/auth"
	"github.com/yourorg/connecthub/internal/service"
)

type Server struct {
	conns *service.ConnectionService
	convs *service.ConversationService
	log   *zap.SugaredLogger
}

func NewServer(jv *auth.JWTValidator, conns *service.ConnectionService, convs *service.ConversationService, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberlogger.New())

	s := &Server{conns: conns, convs: convs, log: log}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/v1")
	api.Use(JWTAuthMiddleware(jv))

	api.Post("/requests", s.createRequest)
	api.Post("/requests/:request_id/accept", s.acceptRequest)
	api.Post("/requests/:request_id/reject", s.rejectRequest)
	api.Patch("/requests/:request_id/meta", s.updateRequestMeta)
	api.Get("/requests/pending", s.listPending)
	api.Get("/requests/pending/count", s.pendingCount)

	api.Post("/conversations/direct", s.createDirect)
	api.Post("/conversations/group", s.createGroup)
	api.Get("/conversations", s.listConversations)
	api.Post("/conversations/:conversation_id/participants", s.addParticipant)
	api.Get("/conversations/:conversation_id/messages", s.listMessages)
	api.Post("/conversations/:conversation_id/messages", s.sendMessage)

	return app
}

func JWTAuthMiddleware(jv *auth.JWTValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing auth"})
		}
		const pref = "Bearer "
		if len(h) <= len(pref) || h[:len(pref)] != pref {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid auth"})
		}
		sub, err := jv.Validate(h[len(pref):])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		c.Locals("user_id", sub)
		return c.Next()
	}
}
