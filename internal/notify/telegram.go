// Package notify delivers accepted deal batches to a Telegram channel.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abdur-rab-khan/aladdin-bot/internal/product"
	"github.com/abdur-rab-khan/aladdin-bot/internal/sites"
)

const telegramAPI = "https://api.telegram.org"

type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		baseURL: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message per product. A failed message is logged and
// skipped; the rest of the batch still goes out.
func (t *Telegram) Send(ctx context.Context, batch []product.Product) error {
	var lastErr error
	sent := 0

	for _, p := range batch {
		if err := t.sendMessage(ctx, Message(p)); err != nil {
			log.Error().Err(err).Str("url", p.URL).Msg("Failed to send deal notification")
			lastErr = err
			continue
		}
		sent++
	}

	log.Info().Int("sent", sent).Int("batch", len(batch)).Msg("Notification batch delivered")
	return lastErr
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// Message formats one deal for Telegram (HTML parse mode).
func Message(p product.Product) string {
	var b strings.Builder

	title := p.Name
	if emoji, ok := sites.CategoryEmoji[p.Category]; ok {
		title = emoji + " " + title
	}

	stars := strings.Repeat("⭐", int(p.Rating))

	fmt.Fprintf(&b, "<b>%s</b>\n\n", title)
	if p.Rating > 0 {
		fmt.Fprintf(&b, "⭐ Reviews: %s (%.1f Stars)\n\n", stars, p.Rating)
	}
	fmt.Fprintf(&b, "💰 Price: <s>❎ ₹%d</s> ➡️ <b>₹%d</b>\n", p.Price, p.DiscountPrice)
	fmt.Fprintf(&b, "🔥 Discount: Save ➡️ %d%%!!\n\n", p.DiscountPercent())
	fmt.Fprintf(&b, "🔗 %s", p.URL)

	return b.String()
}
