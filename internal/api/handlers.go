package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/connecthub/internal/apperrors"
	"github.com/yourorg/connecthub/internal/models"
	"github.com/yourorg/connecthub/internal/service"
)

// fail maps domain errors to HTTP statuses so clients can tell a business
// rejection from an auth failure from an outage.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		status = fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrForbidden), errors.Is(err, apperrors.ErrNoConnection):
		status = fiber.StatusForbidden
	case errors.Is(err, apperrors.ErrDuplicatePending),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrAlreadyMember):
		status = fiber.StatusConflict
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		status = fiber.StatusServiceUnavailable
	}
	if status == fiber.StatusInternalServerError || status == fiber.StatusServiceUnavailable {
		s.log.Errorw("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

type createRequestReq struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (s *Server) createRequest(c *fiber.Ctx) error {
	var req createRequestReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	out, err := s.conns.Create(c.Context(), userID(c), req.To, req.Message)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (s *Server) acceptRequest(c *fiber.Ctx) error {
	return s.respond(c, service.DecisionAccept)
}

func (s *Server) rejectRequest(c *fiber.Ctx) error {
	return s.respond(c, service.DecisionReject)
}

func (s *Server) respond(c *fiber.Ctx, decision service.Decision) error {
	out, err := s.conns.Respond(c.Context(), c.Params("request_id"), userID(c), decision)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(out)
}

type updateMetaReq struct {
	Meta map[string]string `json:"meta"`
}

func (s *Server) updateRequestMeta(c *fiber.Ctx) error {
	var req updateMetaReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	out, err := s.conns.UpdateMeta(c.Context(), c.Params("request_id"), userID(c), req.Meta)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(out)
}

func (s *Server) listPending(c *fiber.Ctx) error {
	out := make([]*models.ConnectionRequest, 0)
	for req, err := range s.conns.PendingFor(c.Context(), userID(c)) {
		if err != nil {
			return s.fail(c, err)
		}
		out = append(out, req)
	}
	return c.JSON(fiber.Map{"requests": out})
}

func (s *Server) pendingCount(c *fiber.Ctx) error {
	n, err := s.conns.PendingCount(c.Context(), userID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

type createDirectReq struct {
	UserID string `json:"user_id"`
}

func (s *Server) createDirect(c *fiber.Ctx) error {
	var req createDirectReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	conv, err := s.convs.CreateDirect(c.Context(), userID(c), req.UserID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(conv)
}

type createGroupReq struct {
	Title          string   `json:"title"`
	ParticipantIDs []string `json:"participant_ids"`
}

func (s *Server) createGroup(c *fiber.Ctx) error {
	var req createGroupReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	conv, err := s.convs.CreateGroup(c.Context(), req.Title, req.ParticipantIDs)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	convs, err := s.convs.ListForUser(c.Context(), userID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

type addParticipantReq struct {
	UserID string `json:"user_id"`
}

func (s *Server) addParticipant(c *fiber.Ctx) error {
	var req addParticipantReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	conv, err := s.convs.AddParticipant(c.Context(), c.Params("conversation_id"), req.UserID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(conv)
}

type sendMessageReq struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

func (s *Server) sendMessage(c *fiber.Ctx) error {
	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	msg, err := s.convs.AppendMessage(c.Context(), c.Params("conversation_id"), userID(c), req.Content, req.Type)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	limit := int64(c.QueryInt("limit", 50))
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid before timestamp")
		}
		before = t
	}

	msgs, err := s.convs.ListMessages(c.Context(), c.Params("conversation_id"), userID(c), limit, before)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}
