// Package telegram delivers price-alert notifications via the Telegram Bot
// API. Messages are formatted with MarkdownV2 and sent with bounded retry;
// delivery is best-effort by design — the caller treats an alert as
// triggered whether or not the message ever arrives.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/feed-pulse/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a Telegram client for one chat.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// NotifyTriggered sends the fired-alert message.
func (c *Client) NotifyTriggered(alert models.PriceAlert, currentPrice float64) error {
	return c.send(formatTriggered(alert, currentPrice))
}

// NotifyError reports the first failure of an evaluator failure streak.
func (c *Client) NotifyError(err error) error {
	msg := fmt.Sprintf("⚠️ *Alert evaluator failing*\n\n%s", escapeMarkdownV2(err.Error()))
	return c.send(msg)
}

// NotifyRecovery reports recovery after consecutive evaluator failures.
func (c *Client) NotifyRecovery(consecutiveFailures int) error {
	msg := fmt.Sprintf("✅ *Alert evaluator recovered* after %d failed ticks", consecutiveFailures)
	return c.send(msg)
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

func formatTriggered(alert models.PriceAlert, currentPrice float64) string {
	direction := "📈"
	if alert.Condition == models.ConditionBelow || alert.Condition == models.ConditionCrossesBelow {
		direction = "📉"
	}

	venue := alert.Exchange
	if venue == "" {
		venue = "aggregated"
	}

	target := escapeMarkdownV2(formatPrice(alert.TargetPrice))
	current := escapeMarkdownV2(formatPrice(currentPrice))
	condition := escapeMarkdownV2(string(alert.Condition))

	msg := fmt.Sprintf("%s *Price alert triggered*\n\n", direction)
	msg += fmt.Sprintf("Symbol: *%s* \\(%s\\)\n", escapeMarkdownV2(alert.Symbol), escapeMarkdownV2(venue))
	msg += fmt.Sprintf("Condition: %s %s\n", condition, target)
	msg += fmt.Sprintf("Current price: *%s*\n", current)
	return msg
}

// formatPrice keeps sub-dollar assets readable without drowning majors in
// decimal places.
func formatPrice(p float64) string {
	if p >= 1 {
		return fmt.Sprintf("%.2f", p)
	}
	return fmt.Sprintf("%.8f", p)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}
