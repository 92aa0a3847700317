package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/denisAlshanov/mediagrab/internal/models"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// botAPI is the part of tgbotapi.BotAPI the notifier uses.
type botAPI interface {
	GetMe() (tgbotapi.User, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotClient uses Telegram Bot API (requires bot token)
type BotClient struct {
	bot    botAPI
	chatID int64
}

func NewBotClient(token string, chatID int64) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("chat id is required")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &BotClient{
		bot:    bot,
		chatID: chatID,
	}, nil
}

func (c *BotClient) Connect(ctx context.Context) error {
	me, err := c.bot.GetMe()
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram Bot API: %w", err)
	}
	utils.LogInfo(ctx, "Connected to Telegram Bot API", utils.Fields{"bot": me.UserName})
	return nil
}

// ShouldNotify is true for outcomes that did not produce real media.
func ShouldNotify(acq *models.Acquisition) bool {
	switch acq.Status {
	case acquisition.StatusSyntheticFallback, acquisition.StatusHardFailure:
		return true
	}
	return false
}

// NotifyAcquisition sends a message for degraded outcomes and ignores the rest.
func (c *BotClient) NotifyAcquisition(ctx context.Context, acq *models.Acquisition) error {
	if !ShouldNotify(acq) {
		return nil
	}

	msg := tgbotapi.NewMessage(c.chatID, FormatAcquisition(acq))
	msg.DisableWebPagePreview = true

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

func (c *BotClient) Close() error {
	// Bot API doesn't need explicit cleanup
	return nil
}

// FormatAcquisition renders the plain text notification body.
func FormatAcquisition(acq *models.Acquisition) string {
	var b strings.Builder

	switch acq.Status {
	case acquisition.StatusHardFailure:
		b.WriteString("Acquisition failed\n")
	default:
		b.WriteString("Acquisition returned a placeholder\n")
	}

	fmt.Fprintf(&b, "ID: %s\n", acq.ID)
	fmt.Fprintf(&b, "Link: %s\n", acq.Link)
	fmt.Fprintf(&b, "Mode: %s\n", acq.Mode)
	if acq.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", acq.Title)
	}
	if acq.SizeBytes > 0 {
		fmt.Fprintf(&b, "Placeholder size: %s\n", humanize.Bytes(uint64(acq.SizeBytes)))
	}

	fmt.Fprintf(&b, "Attempts (%d):\n", len(acq.Attempts))
	for _, a := range acq.Attempts {
		detail := string(a.Outcome)
		switch {
		case a.Reason != "":
			detail += " (" + string(a.Reason) + ")"
		case a.Error != "":
			detail += ": " + truncate(a.Error, 120)
		}
		fmt.Fprintf(&b, "- %s %s\n", a.Spec, detail)
	}

	b.WriteString(acq.Message)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
