// Package bot maps chat platform updates onto the ticket core.
package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/platform/telegram"
	"github.com/spec-kit/ticket-relay/internal/service"
	"github.com/spec-kit/ticket-relay/internal/session"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

// Handler dispatches Telegram updates. It implements telegram.UpdateHandler.
type Handler struct {
	directory   *service.DirectoryService
	tickets     *service.TicketService
	router      *service.Router
	correlation *service.CorrelationIndex
	sessions    session.Store
	messenger   service.Messenger
	logger      *zap.Logger
	botID       int64
}

// HandlerDependencies bundles collaborators for the handler.
type HandlerDependencies struct {
	Directory   *service.DirectoryService
	Tickets     *service.TicketService
	Router      *service.Router
	Correlation *service.CorrelationIndex
	Sessions    session.Store
	Messenger   service.Messenger
	Logger      *zap.Logger
	// BotID is the bot's own account id; membership updates about other users are ignored.
	BotID int64
}

// NewHandler constructs the update handler.
func NewHandler(deps HandlerDependencies) *Handler {
	return &Handler{
		directory:   deps.Directory,
		tickets:     deps.Tickets,
		router:      deps.Router,
		correlation: deps.Correlation,
		sessions:    deps.Sessions,
		messenger:   deps.Messenger,
		logger:      deps.Logger,
		botID:       deps.BotID,
	}
}

// HandleUpdate processes one update. Errors are returned only for store failures.
func (h *Handler) HandleUpdate(ctx context.Context, u *telegram.Update) error {
	logger := h.logger.With(zap.String("unit_id", uuid.NewString()), zap.Int64("update_id", u.UpdateID))

	switch {
	case u.MyChatMember != nil:
		return h.handleMembership(ctx, logger, u.MyChatMember)
	case u.Message != nil:
		msg := u.Message
		if msg.From == nil || msg.From.IsBot {
			return nil
		}
		if msg.Chat.Private() {
			return h.handlePrivate(ctx, logger, msg)
		}
		return h.handleGroup(ctx, logger, msg)
	}
	return nil
}

func (h *Handler) handleMembership(ctx context.Context, logger *zap.Logger, m *telegram.ChatMemberUpdated) error {
	if m.Chat.Private() || m.NewChatMember.User.ID != h.botID {
		return nil
	}
	if m.NewChatMember.Present() {
		_, err := h.directory.RegisterChat(ctx, m.Chat.ID, m.Chat.Title)
		return err
	}
	logger.Info("bot removed from chat", zap.Int64("chat_id", m.Chat.ID), zap.String("status", m.NewChatMember.Status))
	return h.directory.DeactivateChat(ctx, m.Chat.ID)
}

func (h *Handler) handleGroup(ctx context.Context, logger *zap.Logger, msg *telegram.Message) error {
	if msg.ReplyToMessage == nil {
		return nil
	}
	if _, err := h.directory.ActiveChat(ctx, msg.Chat.ID); err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	sender := h.identify(ctx, logger, msg.From)
	ev := inbound(domain.SideGroup, msg, senderName(sender, msg.From))

	switch cmd, _ := parseCommand(msg.Text); cmd {
	case "/take", "/close":
		return h.groupCommand(ctx, logger, cmd, ev, msg)
	}

	_, err := h.router.Route(ctx, ev)
	return err
}

// groupCommand applies /take or /close to the ticket the command replies to.
func (h *Handler) groupCommand(ctx context.Context, logger *zap.Logger, cmd string, ev domain.InboundEvent, msg *telegram.Message) error {
	corr, err := h.correlation.Resolve(ctx, domain.SideGroup, ev.ConversationID, ev.ReplyToMessageID)
	if err != nil {
		if apperrors.IsUnresolved(err) {
			logger.Debug("command on uncorrelated message", zap.String("command", cmd))
			return nil
		}
		return err
	}

	platformID := msg.From.ID
	actor := actorOf(domain.SideGroup, platformID)
	var tr *service.Transition
	if cmd == "/take" {
		tr, err = h.tickets.TakeInProgress(ctx, corr.Ticket.ID, actor)
	} else {
		tr, err = h.tickets.Close(ctx, corr.Ticket.ID, actor)
	}
	if err != nil {
		return err
	}
	h.reply(ctx, logger, msg, groupCommandText(cmd, tr))
	return nil
}

func (h *Handler) handlePrivate(ctx context.Context, logger *zap.Logger, msg *telegram.Message) error {
	user := h.identify(ctx, logger, msg.From)
	if user == nil {
		// strangers only learn that they are not registered, and only when they ask
		if cmd, _ := parseCommand(msg.Text); cmd == "/start" {
			h.reply(ctx, logger, msg, notRegisteredText)
		}
		return nil
	}

	if msg.ReplyToMessage != nil {
		if cmd, _ := parseCommand(msg.Text); cmd == "" {
			res, err := h.router.Route(ctx, inbound(domain.SideRequester, msg, user.Identity()))
			if err != nil || res.Outcome != service.OutcomeIgnored {
				return err
			}
			// a reply to a dialogue prompt is dialogue input
		}
	}

	sess, err := h.sessions.Load(ctx, msg.Chat.ID)
	if err != nil {
		return err
	}
	reply, err := h.converse(ctx, user, sess, msg)
	if err != nil {
		return err
	}
	if err := h.sessions.Save(ctx, sess); err != nil {
		return err
	}
	if reply != "" {
		h.reply(ctx, logger, msg, reply)
	}
	return nil
}

// identify returns nil for senders the directory does not know.
func (h *Handler) identify(ctx context.Context, logger *zap.Logger, from *telegram.User) *domain.User {
	first := from.FirstName
	user, err := h.directory.IdentifyParticipant(ctx, from.ID, from.Username, &first)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			logger.Error("identify participant", zap.Int64("platform_id", from.ID), zap.Error(err))
		}
		return nil
	}
	return user
}

func (h *Handler) reply(ctx context.Context, logger *zap.Logger, msg *telegram.Message, text string) {
	replyTo := msg.MessageID
	if _, err := h.messenger.Send(ctx, domain.OutboundMessage{
		ConversationID:   msg.Chat.ID,
		Text:             text,
		ReplyToMessageID: &replyTo,
	}); err != nil {
		logger.Warn("reply not delivered", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func inbound(side domain.Side, msg *telegram.Message, sender string) domain.InboundEvent {
	text := msg.Text
	if text == nil {
		text = msg.Caption
	}
	return domain.InboundEvent{
		Side:             side,
		ConversationID:   msg.Chat.ID,
		SenderID:         msg.From.ID,
		SenderName:       sender,
		MessageID:        msg.MessageID,
		ReplyToMessageID: msg.ReplyToMessage.MessageID,
		Text:             text,
	}
}

func senderName(user *domain.User, from *telegram.User) string {
	if user != nil {
		return user.Identity()
	}
	if from.Username != nil && *from.Username != "" {
		return from.FirstName + " (@" + *from.Username + ")"
	}
	return from.FirstName
}

// parseCommand splits "/cmd@bot args" into "/cmd" and "args". Non-commands yield "".
func parseCommand(text *string) (string, string) {
	if text == nil {
		return "", ""
	}
	t := strings.TrimSpace(*text)
	if !strings.HasPrefix(t, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(t, " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}
