package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-relay/internal/api/dto"
	"github.com/spec-kit/ticket-relay/internal/service"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// TopicsHandler manages topics, their chats and responders.
type TopicsHandler struct {
	directory *service.DirectoryService
}

// NewTopicsHandler constructs handler.
func NewTopicsHandler(directory *service.DirectoryService) *TopicsHandler {
	return &TopicsHandler{directory: directory}
}

// ListTopics GET /admin/topics.
func (h *TopicsHandler) ListTopics(c *fiber.Ctx) error {
	topics, err := h.directory.ListTopics(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.TopicResponse, 0, len(topics))
	for i := range topics {
		items = append(items, dto.NewTopicResponse(&topics[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateTopic POST /admin/topics.
func (h *TopicsHandler) CreateTopic(c *fiber.Ctx) error {
	var req dto.CreateTopicRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	topic, err := h.directory.CreateTopic(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return err
	}
	return created(c, dto.NewTopicResponse(topic))
}

// DeleteTopic DELETE /admin/topics/:id.
func (h *TopicsHandler) DeleteTopic(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.directory.DeleteTopic(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// BindChat PUT /admin/topics/:id/chat.
func (h *TopicsHandler) BindChat(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.BindChatRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ChatID == nil {
		err = h.directory.UnbindChat(c.UserContext(), id)
	} else {
		err = h.directory.BindChat(c.UserContext(), id, *req.ChatID)
	}
	if err != nil {
		return err
	}
	topic, err := h.directory.GetTopic(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTopicResponse(topic)})
}

// ListResponders GET /admin/topics/:id/responders.
func (h *TopicsHandler) ListResponders(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	users, err := h.directory.Responders(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddResponder POST /admin/topics/:id/responders/:userID.
func (h *TopicsHandler) AddResponder(c *fiber.Ctx) error {
	topicID, userID, err := topicAndUser(c)
	if err != nil {
		return err
	}
	if err := h.directory.AddResponder(c.UserContext(), topicID, userID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RemoveResponder DELETE /admin/topics/:id/responders/:userID.
func (h *TopicsHandler) RemoveResponder(c *fiber.Ctx) error {
	topicID, userID, err := topicAndUser(c)
	if err != nil {
		return err
	}
	if err := h.directory.RemoveResponder(c.UserContext(), topicID, userID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListChats GET /admin/chats.
func (h *TopicsHandler) ListChats(c *fiber.Ctx) error {
	chats, err := h.directory.ListChats(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ChatResponse, 0, len(chats))
	for i := range chats {
		items = append(items, dto.NewChatResponse(&chats[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func topicAndUser(c *fiber.Ctx) (int64, int64, error) {
	topicID, err := paramID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	userID, err := paramID(c, "userID")
	if err != nil {
		return 0, 0, err
	}
	return topicID, userID, nil
}
