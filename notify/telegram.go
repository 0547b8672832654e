// Package notify relays run status messages to a Telegram chat.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultAPIBase = "https://api.telegram.org"

// Level tags a message for its icon.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) icon() string {
	switch l {
	case LevelSuccess:
		return "✅"
	case LevelWarning:
		return "⚠️"
	case LevelError:
		return "❌"
	}
	return "ℹ️"
}

// Message is one status update.
type Message struct {
	Title  string
	User   string
	RunID  string
	Status string
	Level  Level
	Time   time.Time
}

// HTML renders m in Telegram's HTML parse mode.
func (m Message) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n", m.Level.icon(), html.EscapeString(m.Title))
	fmt.Fprintf(&b, "<i>%s</i>\n", m.Time.Format("2006-01-02 15:04:05"))
	if m.User != "" {
		fmt.Fprintf(&b, "👤 %s\n", html.EscapeString(m.User))
	}
	b.WriteString(html.EscapeString(m.Status))
	if m.RunID != "" {
		fmt.Fprintf(&b, "\n<code>%s</code>", html.EscapeString(m.RunID))
	}
	return b.String()
}

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   strings.TrimSpace(token),
		chatID:  strings.TrimSpace(chatID),
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (t *Telegram) WithAPIBase(base string) *Telegram {
	t.apiBase = strings.TrimRight(base, "/")
	return t
}

// Enabled reports whether both bot token and chat id are configured.
func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// Notify prints m to the console and, when configured, sends it to the chat.
func (t *Telegram) Notify(ctx context.Context, m Message) error {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	body := m.HTML()
	log.Printf("📣 %s", PlainText(body))

	if !t.Enabled() {
		return nil
	}

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", body)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		// the URL carries the bot token
		return fmt.Errorf("telegram sendMessage failed: %w", redact(err, t.token))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("telegram returned status %d with invalid JSON", resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

// PlainText strips the markup from a rendered message for console output.
func PlainText(htmlText string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(htmlText, "\n", "<br>")))
	if err != nil {
		return htmlText
	}
	doc.Find("br").ReplaceWithHtml(" | ")
	return strings.TrimSpace(doc.Text())
}

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<token>"))
}
