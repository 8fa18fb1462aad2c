package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-relay/internal/api/dto"
	"github.com/spec-kit/ticket-relay/internal/auth"
	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/repository"
	"github.com/spec-kit/ticket-relay/internal/service"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// TicketsHandler exposes ticket operations to operators.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /admin/tickets?status=open,in_progress&requester_id=&responder_id=&page=&page_size=.
// requester_id and responder_id are user ids; responder_id selects the tickets of the topics that user answers.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var filter repository.TicketFilter
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	var err error
	if filter.RequesterID, err = queryID(c, "requester_id"); err != nil {
		return err
	}
	if filter.ResponderUserID, err = queryID(c, "responder_id"); err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	filter.Limit = parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * filter.Limit

	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /admin/tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatsResponse{
		Total:      stats.Total,
		Open:       stats.Open,
		InProgress: stats.InProgress,
		Closed:     stats.Closed,
	}})
}

// GetTicket GET /admin/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	messages, err := h.service.Transcript(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, messages)})
}

// TakeTicket POST /admin/tickets/:id/take.
func (h *TicketsHandler) TakeTicket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	tr, err := h.service.TakeInProgress(c.UserContext(), id, operator(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(tr)})
}

// CloseTicket POST /admin/tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	tr, err := h.service.Close(c.UserContext(), id, operator(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transitionResponse(tr)})
}

// operator acts on the responder side of the ticket.
func operator(c *fiber.Ctx) events.Actor {
	actor := events.Actor{Side: domain.SideGroup}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		pid := principal.PlatformID
		actor.PlatformID = &pid
	}
	return actor
}

func transitionResponse(tr *service.Transition) dto.TransitionResponse {
	return dto.TransitionResponse{
		Ticket:  dto.NewTicketSummary(tr.Ticket),
		From:    tr.From,
		To:      tr.To,
		Changed: tr.Changed(),
	}
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{name: c.Params(name)})
	}
	return id, nil
}

// queryID parses an optional positive id query parameter.
func queryID(c *fiber.Ctx, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError("invalid "+name, map[string]any{name: raw})
	}
	return &id, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": data})
}
