package service

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf16"

	"github.com/spec-kit/ticket-relay/internal/domain"
)

const (
	nonTextPlaceholder = "[non-text message]"
	// maxMessageLength is the platform limit on visible characters, counted in UTF-16 units.
	maxMessageLength = 4096
	maxTitleInHeader = 256
)

var markupStripper = strings.NewReplacer("<b>", "", "</b>", "")

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// visibleLength measures formatted text the way the platform does after parsing markup.
func visibleLength(formatted string) int {
	return utf16Len(html.UnescapeString(markupStripper.Replace(formatted)))
}

// clip shortens raw text to at most budget UTF-16 units, marking the cut with an ellipsis.
func clip(s string, budget int) string {
	if utf16Len(s) <= budget {
		return s
	}
	if budget <= 0 {
		return ""
	}
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if n+w > budget-1 {
			return s[:i] + "…"
		}
		n += w
	}
	return s
}

func closedNotice(ticketID int64) string {
	return fmt.Sprintf("🔒 Ticket #%d is already closed. Your message was not delivered.", ticketID)
}

func deliveryFailedNotice(ticketID int64) string {
	return fmt.Sprintf("⚠️ Your message on ticket #%d could not be delivered.", ticketID)
}

func deliveredNotice(ticketID int64) string {
	return fmt.Sprintf("✅ Delivered to ticket #%d.", ticketID)
}

const processingFailedNotice = "⚠️ Your message could not be processed. Please try again later."

func autoClosedNotice(ticket *domain.Ticket) string {
	return fmt.Sprintf("⏱ Ticket #%d <b>%s</b> was closed automatically after a period of inactivity.",
		ticket.ID, html.EscapeString(ticket.Title))
}

func closedByResponderNotice(ticket *domain.Ticket) string {
	return fmt.Sprintf("🔒 Ticket #%d <b>%s</b> was closed by support.", ticket.ID, html.EscapeString(ticket.Title))
}

func closedByRequesterNotice(ticket *domain.Ticket) string {
	return fmt.Sprintf("🔒 Ticket #%d was closed by the requester.", ticket.ID)
}

func takenNotice(ticket *domain.Ticket) string {
	return fmt.Sprintf("🛠 Ticket #%d <b>%s</b> was taken into progress.", ticket.ID, html.EscapeString(ticket.Title))
}

func body(text *string, budget int) string {
	if text == nil || strings.TrimSpace(*text) == "" {
		return nonTextPlaceholder
	}
	return html.EscapeString(clip(*text, budget))
}

// composeForward prefixes the relayed text with the sender identity. The text is
// shortened so the whole message stays within maxMessageLength.
func composeForward(from domain.Side, ticket *domain.Ticket, sender string, text *string) string {
	var b strings.Builder
	if from == domain.SideGroup {
		fmt.Fprintf(&b, "💬 Reply on ticket #%d\n<b>%s</b>\n\n", ticket.ID, html.EscapeString(clip(ticket.Title, maxTitleInHeader)))
	} else {
		fmt.Fprintf(&b, "💬 Requester message on ticket #%d\n", ticket.ID)
	}
	fmt.Fprintf(&b, "<b>%s</b>: ", html.EscapeString(clip(sender, maxTitleInHeader)))
	b.WriteString(body(text, maxMessageLength-visibleLength(b.String())))
	return b.String()
}

func composeAnnouncement(ticket *domain.Ticket, topic *domain.Topic, requester *domain.User, responders []domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 New ticket #%d\n", ticket.ID)
	fmt.Fprintf(&b, "Topic: %s\n", html.EscapeString(topic.Name))
	fmt.Fprintf(&b, "From: %s\n\n", html.EscapeString(requester.Identity()))
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(ticket.Title))
	if ticket.Description != nil && *ticket.Description != "" {
		// leave room for the mentions and the reply hint
		fmt.Fprintf(&b, "%s\n", html.EscapeString(clip(*ticket.Description, maxMessageLength-visibleLength(b.String())-512)))
	}

	var mentions []string
	for _, r := range responders {
		if r.Username != nil && *r.Username != "" {
			mentions = append(mentions, "@"+html.EscapeString(*r.Username))
		}
	}
	if len(mentions) > 0 {
		fmt.Fprintf(&b, "\nResponsible: %s\n", strings.Join(mentions, " "))
	}
	b.WriteString("\n↩️ Reply to this message to answer the requester.")
	return b.String()
}

func composeConfirmation(ticket *domain.Ticket, announced bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Ticket #%d created: <b>%s</b>\n", ticket.ID, html.EscapeString(ticket.Title))
	if !announced {
		b.WriteString("Support could not be reached right now; the ticket stays open.\n")
	}
	b.WriteString("↩️ Reply to this message to add details.")
	return b.String()
}
