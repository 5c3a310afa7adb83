// Package telegram is the chat surface of the bot: the command
// handlers, the settings wizard and the vacancy delivery channel.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"vacanbot/internal/search"
	"vacanbot/internal/source/hh"
	"vacanbot/internal/storage"
	"vacanbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration // default 10s
}

// Adapter wires telebot to the store and implements the sender's
// Delivery interface.
type Adapter struct {
	bot     *tele.Bot
	store   storage.Store
	catalog search.Catalog
	log     logx.Logger

	wiz *wizardStore
}

func New(cfg Config, store storage.Store, catalog search.Catalog, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{
		bot:     b,
		store:   store,
		catalog: catalog,
		log:     log,
		wiz:     newWizardStore(),
	}
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle("/start", a.handleStart)
	a.bot.Handle("/help", a.handleHelp)
	a.bot.Handle("/settings", a.handleSettings)
	a.bot.Handle(tele.OnCallback, a.handleCallback)
	a.bot.Handle(tele.OnText, a.handleText)
}

// Start begins long polling. It returns immediately; polling stops
// when ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	go func() {
		a.log.Info("telegram polling started")
		a.bot.Start()
		a.log.Info("telegram polling stopped")
	}()
}

func (a *Adapter) handleStart(c tele.Context) error {
	userID := c.Sender().ID
	if err := a.store.EnsureUser(context.Background(), userID); err != nil {
		a.log.Error("user registration failed", logx.Int64("user", userID), logx.Err(err))
		return c.Send("Что-то пошло не так, попробуйте позже.")
	}
	a.log.Info("user started the bot", logx.Int64("user", userID))

	text := fmt.Sprintf(
		"👋 *Привет, %s!*\n\n"+
			"🚀 Давай настроим бота, чтобы он идеально подходил под твои запросы\n"+
			"👉 Для начала настроек нажми /settings\n",
		c.Sender().FirstName,
	)
	return c.Send(text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

func (a *Adapter) handleHelp(c tele.Context) error {
	text := "📚 *Доступные команды:*\n\n" +
		"👉 /start — начать работу с ботом 🚀\n" +
		"👉 /help — открыть список команд 📝\n" +
		"👉 /settings — изменить настройки ⚙️\n"
	return c.Send(text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

func (a *Adapter) handleText(c tele.Context) error {
	// Free text outside a command is not part of any flow.
	return c.Send("Не понимаю 🤷 Загляни в /help.")
}

// SendVacancy delivers one posting as a Markdown message with a link
// button. This is the sender's Delivery implementation.
func (a *Adapter) SendVacancy(ctx context.Context, userID int64, v hh.Vacancy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Send(
		&tele.Chat{ID: userID},
		formatVacancy(v),
		&tele.SendOptions{ParseMode: tele.ModeMarkdown, DisableWebPagePreview: true},
		vacancyMarkup(v.Link),
	)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
