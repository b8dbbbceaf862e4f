// Package telegram adapts the Telegram Bot API (via telebot) to the narrow
// channel capability the dispatcher depends on. It is the only package that
// knows which messaging platform is behind a reminder.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"zuppa/internal/transport"
	"zuppa/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration // long-poll timeout; 0 means 10s
	SendTimeout time.Duration // per-request HTTP timeout; 0 means 10s
}

// Adapter owns the telebot connection. ResolveChannel treats the opaque
// channel id as a numeric Telegram chat id.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot *tele.Bot

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
		// The HTTP client timeout bounds every send so one stuck request
		// cannot stall the scheduler past its next tick.
		Client: &http.Client{Timeout: sendTimeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Connect starts the telebot poll loop. The core never consumes inbound
// updates; polling just keeps the session registered with Telegram.
func (a *Adapter) Connect(ctx context.Context) error {
	_ = ctx

	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.running = true

	go func() {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
	return nil
}

// Disconnect stops the poll loop. Telebot's Stop can block on a pending
// long-poll, so it runs async with a grace window bounded by ctx.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}

	done := make(chan struct{})
	go func() {
		a.bot.Stop()
		close(done)
	}()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		a.log.Warn("telegram stop timed out, abandoning long-poll")
	}
	return nil
}

// ResolveChannel maps a numeric chat id to a send-capable channel.
func (a *Adapter) ResolveChannel(id string) transport.Channel {
	chatID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		a.log.Warn("channel id is not a chat id", logx.String("id", id), logx.Err(err))
		return nil
	}
	return &channel{bot: a.bot, chatID: chatID}
}

type channel struct {
	bot    *tele.Bot
	chatID int64
}

func (c *channel) Send(ctx context.Context, mention string, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	if msg.Title != "" {
		b.WriteString("<b>")
		b.WriteString(escapeHTML(msg.Title))
		b.WriteString("</b>\n")
	}
	if mention != "" {
		b.WriteString(escapeHTML(mention))
		b.WriteString("\n")
	}
	b.WriteString(escapeHTML(msg.Body))
	if msg.EventLine != "" {
		b.WriteString("\n<i>")
		b.WriteString(escapeHTML(msg.EventLine))
		b.WriteString("</i>")
	}

	_, err := c.bot.Send(tele.ChatID(c.chatID), b.String(), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send to %d: %w", c.chatID, err)
	}
	return nil
}

func escapeHTML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
