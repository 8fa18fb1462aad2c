package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/ticket-relay/internal/domain"
	"github.com/spec-kit/ticket-relay/internal/events"
	"github.com/spec-kit/ticket-relay/internal/platform/telegram"
	"github.com/spec-kit/ticket-relay/internal/service"
	"github.com/spec-kit/ticket-relay/internal/session"
	apperrors "github.com/spec-kit/ticket-relay/pkg/util/errorutil"
)

const (
	minTitleLength  = 3
	ticketListLimit = 20
	skipMarker      = "-"
	// transcriptLimit keeps /ticket within a single message.
	transcriptLimit   = 15
	transcriptLineLen = 200
)

// converse advances the private conversation and returns the text to answer with.
// sess is mutated in place; the caller persists it.
func (h *Handler) converse(ctx context.Context, user *domain.User, sess *session.Session, msg *telegram.Message) (string, error) {
	if msg.Text == nil {
		return "", nil
	}
	text := strings.TrimSpace(*msg.Text)
	cmd, arg := parseCommand(msg.Text)

	switch cmd {
	case "/start", "/help":
		sess.Reset()
		return helpText, nil
	case "/cancel":
		if sess.Idle() {
			return "Nothing to cancel.", nil
		}
		sess.Reset()
		return "❌ Ticket creation cancelled.", nil
	case "/new":
		return h.startDraft(ctx, sess)
	case "/tickets":
		return h.listTickets(ctx, user)
	case "/ticket":
		return h.showTicket(ctx, user, arg)
	case "/close":
		return h.closeOwn(ctx, user, msg.From.ID, arg)
	case "/confirm":
		if sess.Step != session.StepConfirm {
			return "Nothing to confirm. Send /new to create a ticket.", nil
		}
		return h.submitDraft(ctx, user, sess)
	case "":
	default:
		return "Unknown command. " + helpText, nil
	}

	switch sess.Step {
	case session.StepTopic:
		return h.chooseTopic(ctx, sess, text)
	case session.StepTitle:
		if utf8.RuneCountInString(text) < minTitleLength {
			return fmt.Sprintf("⚠️ The title is too short (at least %d characters).", minTitleLength), nil
		}
		sess.Draft.Title = text
		sess.Step = session.StepDescription
		return "📄 Describe the problem (or send \"-\" to skip):", nil
	case session.StepDescription:
		if text != skipMarker {
			sess.Draft.Description = text
		}
		sess.Step = session.StepConfirm
		return draftSummary(sess.Draft), nil
	case session.StepConfirm:
		return "Send /confirm to create the ticket or /cancel to discard it.", nil
	}
	return helpText, nil
}

func (h *Handler) startDraft(ctx context.Context, sess *session.Session) (string, error) {
	topics, err := h.directory.AvailableTopics(ctx)
	if err != nil {
		return "", err
	}
	sess.Reset()
	if len(topics) == 0 {
		return "⚠️ No topics are available right now. Please contact an administrator.", nil
	}
	sess.Step = session.StepTopic

	var b strings.Builder
	b.WriteString("📂 Choose a topic (send its number or name):\n")
	for i, t := range topics {
		fmt.Fprintf(&b, "%d. %s\n", i+1, html.EscapeString(t.Name))
	}
	return b.String(), nil
}

func (h *Handler) chooseTopic(ctx context.Context, sess *session.Session, text string) (string, error) {
	topics, err := h.directory.AvailableTopics(ctx)
	if err != nil {
		return "", err
	}
	var chosen *domain.Topic
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(topics) {
		chosen = &topics[n-1]
	} else {
		for i := range topics {
			if strings.EqualFold(topics[i].Name, text) {
				chosen = &topics[i]
				break
			}
		}
	}
	if chosen == nil {
		return "⚠️ Pick one of the listed topics.", nil
	}
	sess.Draft.TopicID = chosen.ID
	sess.Draft.TopicName = chosen.Name
	sess.Step = session.StepTitle
	return "📝 Enter the ticket title:", nil
}

func (h *Handler) submitDraft(ctx context.Context, user *domain.User, sess *session.Session) (string, error) {
	input := service.TicketCreateInput{
		RequesterID: user.ID,
		TopicID:     sess.Draft.TopicID,
		Title:       sess.Draft.Title,
	}
	if sess.Draft.Description != "" {
		d := sess.Draft.Description
		input.Description = &d
	}

	_, err := h.tickets.CreateTicket(ctx, input)
	switch {
	case err == nil:
		sess.Reset()
		// the ticket service sends the confirmation itself
		return "", nil
	case apperrors.IsNotFound(err), apperrors.IsValidation(err):
		sess.Reset()
		return "⚠️ The ticket could not be created: " + html.EscapeString(apperrors.ToDomainError(err).Message) + ". Send /new to start again.", nil
	}
	return "", err
}

func (h *Handler) listTickets(ctx context.Context, user *domain.User) (string, error) {
	var (
		tickets []domain.Ticket
		err     error
	)
	if user.Role == domain.UserRoleResponder {
		tickets, err = h.tickets.ListByResponder(ctx, user.ID, ticketListLimit, 0)
	} else {
		tickets, err = h.tickets.ListByRequester(ctx, user.ID, ticketListLimit, 0)
	}
	if err != nil {
		return "", err
	}
	if len(tickets) == 0 {
		return "You have no tickets yet.", nil
	}

	var b strings.Builder
	b.WriteString("📋 Your tickets:\n\n")
	for _, t := range tickets {
		fmt.Fprintf(&b, "%s #%d — %s\n", statusMark(t.Status), t.ID, html.EscapeString(truncate(t.Title, 40)))
	}
	return b.String(), nil
}

func (h *Handler) showTicket(ctx context.Context, user *domain.User, arg string) (string, error) {
	id, ok := ticketArg(arg)
	if !ok {
		return "Usage: /ticket &lt;ticket id&gt;", nil
	}
	view, err := h.tickets.View(ctx, id, user)
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		return fmt.Sprintf("Ticket #%d was not found.", id), nil
	case apperrors.IsForbidden(err):
		return fmt.Sprintf("Ticket #%d belongs to someone else.", id), nil
	default:
		return "", err
	}
	return renderTicket(view), nil
}

func renderTicket(view *service.TicketView) string {
	t := view.Ticket
	var b strings.Builder
	fmt.Fprintf(&b, "%s Ticket #%d <b>%s</b>\n", statusMark(t.Status), t.ID, html.EscapeString(truncate(t.Title, transcriptLineLen)))
	fmt.Fprintf(&b, "Status: %s · opened %s\n", statusLabel(t.Status), t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	if t.Description != nil && *t.Description != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(truncate(*t.Description, transcriptLineLen)))
	}

	if len(view.Messages) == 0 {
		b.WriteString("\nNo messages yet.")
		return b.String()
	}
	messages := view.Messages
	if len(messages) > transcriptLimit {
		fmt.Fprintf(&b, "\n… %d earlier messages\n", len(messages)-transcriptLimit)
		messages = messages[len(messages)-transcriptLimit:]
	}
	b.WriteString("\n")
	for _, m := range messages {
		who := "🛠 Support"
		if view.Requester.PlatformID != nil && m.SenderPlatformID == *view.Requester.PlatformID {
			who = "👤 Requester"
		}
		text := "[non-text message]"
		if m.Text != nil && strings.TrimSpace(*m.Text) != "" {
			text = truncate(*m.Text, transcriptLineLen)
		}
		fmt.Fprintf(&b, "%s %s: %s\n", m.CreatedAt.UTC().Format("01-02 15:04"), who, html.EscapeString(text))
	}
	return b.String()
}

func ticketArg(arg string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(arg), "#"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) closeOwn(ctx context.Context, user *domain.User, platformID int64, arg string) (string, error) {
	id, ok := ticketArg(arg)
	if !ok {
		return "Usage: /close &lt;ticket id&gt;", nil
	}
	actor := actorOf(domain.SideRequester, platformID)
	if user.Role == domain.UserRoleResponder {
		actor.Side = domain.SideGroup
	}

	tr, err := h.tickets.Close(ctx, id, actor)
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		return fmt.Sprintf("Ticket #%d was not found.", id), nil
	case apperrors.IsForbidden(err):
		return fmt.Sprintf("Ticket #%d belongs to someone else.", id), nil
	default:
		return "", err
	}
	if !tr.Changed() {
		return fmt.Sprintf("Ticket #%d is already closed.", id), nil
	}
	return fmt.Sprintf("🔒 Ticket #%d closed.", id), nil
}

func groupCommandText(cmd string, tr *service.Transition) string {
	if !tr.Changed() {
		return fmt.Sprintf("Ticket #%d is already %s.", tr.TicketID, statusLabel(tr.To))
	}
	if cmd == "/take" {
		return fmt.Sprintf("🛠 Ticket #%d is now in progress.", tr.TicketID)
	}
	return fmt.Sprintf("🔒 Ticket #%d closed.", tr.TicketID)
}

func draftSummary(d session.Draft) string {
	desc := d.Description
	if desc == "" {
		desc = "—"
	}
	return fmt.Sprintf("📋 <b>Confirm the ticket:</b>\n\n📝 Title: <b>%s</b>\n📄 Description: %s\n📂 Topic: %s\n\nSend /confirm to create it or /cancel to discard it.",
		html.EscapeString(d.Title), html.EscapeString(desc), html.EscapeString(d.TopicName))
}

func actorOf(side domain.Side, platformID int64) events.Actor {
	return events.Actor{Side: side, PlatformID: &platformID}
}

func statusMark(s domain.TicketStatus) string {
	switch s {
	case domain.TicketStatusOpen:
		return "🟢"
	case domain.TicketStatusInProgress:
		return "🟡"
	case domain.TicketStatusClosed:
		return "🔴"
	}
	return "⚪"
}

func statusLabel(s domain.TicketStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

const notRegisteredText = "⛔ You are not registered with support. Please contact an administrator."

const helpText = `I relay support tickets.

/new — create a ticket
/tickets — list your tickets
/ticket &lt;id&gt; — show a ticket and its messages
/close &lt;id&gt; — close one of your tickets
/cancel — abort ticket creation

Reply to any message about a ticket to add to the conversation.`
