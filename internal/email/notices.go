package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const noticeTimeout = 5 * time.Second

const (
	NoticeSelected = "selected"
	NoticeReserve  = "reserve"
	NoticePromoted = "promoted"
)

type Message struct {
	Subject string
	Body    string
}

// GameDetails is what a notice says about the game.
type GameDetails struct {
	ID       int64
	Title    string
	Venue    string
	StartsAt time.Time
	// RosterURL links to the public roster page; empty omits the link.
	RosterURL string
}

// Recipient is a registered player. An empty Email means the player has no
// address on file and is skipped.
type Recipient struct {
	PlayerID int64
	Name     string
	Email    string
	Notice   string
}

type NoticeSummary struct {
	Sent    int
	Skipped int
	Failed  int
}

func FormatKickoff(t time.Time) string {
	return t.Format("Monday, Jan 2 at 3:04 PM MST")
}

func BuildNotice(game GameDetails, recipient Recipient) (Message, bool) {
	name := strings.TrimSpace(recipient.Name)
	if name == "" {
		name = "there"
	}

	var subject, lead string
	switch recipient.Notice {
	case NoticeSelected:
		subject = fmt.Sprintf("You're playing: %s", game.Title)
		lead = "Good news, you've been selected for"
	case NoticeReserve:
		subject = fmt.Sprintf("You're a reserve: %s", game.Title)
		lead = "The squad is full, but you're on the reserve list for"
	case NoticePromoted:
		subject = fmt.Sprintf("A spot opened up: %s", game.Title)
		lead = "Someone dropped out and you've moved off the reserve list for"
	default:
		return Message{}, false
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n%s %s.\n\n", name, lead, game.Title)
	fmt.Fprintf(&body, "Kick-off: %s\n", FormatKickoff(game.StartsAt))
	if game.Venue != "" {
		fmt.Fprintf(&body, "Venue: %s\n", game.Venue)
	}
	if game.RosterURL != "" {
		fmt.Fprintf(&body, "\nFull roster: %s\n", game.RosterURL)
	}
	if recipient.Notice == NoticeReserve {
		body.WriteString("\nWe'll email you if a spot opens up.\n")
	}
	return Message{Subject: subject, Body: body.String()}, true
}

// SendSelectionNotices emails each recipient in turn. Each send gets its own
// timeout detached from ctx cancellation. Failures are logged and counted.
func SendSelectionNotices(ctx context.Context, sender EmailSender, game GameDetails, recipients []Recipient) NoticeSummary {
	var summary NoticeSummary
	if sender == nil {
		summary.Skipped = len(recipients)
		return summary
	}

	logger := log.Ctx(ctx).With().
		Str("component", "selection_notices").
		Int64("game_id", game.ID).
		Logger()

	for _, recipient := range recipients {
		address := strings.TrimSpace(recipient.Email)
		msg, ok := BuildNotice(game, recipient)
		if address == "" || !ok {
			summary.Skipped++
			continue
		}

		sendCtx, cancel := newEmailContext(ctx, noticeTimeout)
		err := sender.Send(sendCtx, address, msg.Subject, msg.Body)
		cancel()
		if err != nil {
			summary.Failed++
			logger.Error().
				Err(err).
				Int64("player_id", recipient.PlayerID).
				Str("notice", recipient.Notice).
				Msg("Failed to send selection notice")
			continue
		}
		summary.Sent++
	}

	logger.Info().
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Selection notices processed")
	return summary
}
