// Package notify: оповещения оператора: Telegram или лог.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// CommandFunc отвечает на команду бота; args: текст после команды.
type CommandFunc func(ctx context.Context, args string) string

type sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

const queueSize = 256

// Telegram: пассивный нотифайер + обработка команд из одного чата.
// Отправка асинхронная, чтобы медленный Telegram не тормозил циклы ботов.
type Telegram struct {
	api    sender
	bot    *tgbot.BotAPI
	chatID int64
	log    *zap.Logger
	queue  chan string

	mu       sync.RWMutex
	commands map[string]CommandFunc
}

func NewTelegram(token string, chatID int64, log *zap.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot api")
	}
	t := newTelegram(b, chatID, log)
	t.bot = b
	return t, nil
}

func newTelegram(api sender, chatID int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{
		api:      api,
		chatID:   chatID,
		log:      log.Named("telegram"),
		queue:    make(chan string, queueSize),
		commands: make(map[string]CommandFunc),
	}
}

// Handle registers a reply for /name.
func (t *Telegram) Handle(name string, fn CommandFunc) {
	t.mu.Lock()
	t.commands[strings.ToLower(name)] = fn
	t.mu.Unlock()
}

func (t *Telegram) Send(msg string) {
	if t == nil {
		return
	}
	select {
	case t.queue <- msg:
	default:
		t.log.Warn("telegram queue full, message dropped", zap.String("msg", msg))
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Start: отправка очереди + long-polling команд.
func (t *Telegram) Start(ctx context.Context) {
	go t.sendLoop(ctx)
	if t.bot == nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)
	go func() {
		defer t.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, upd)
			}
		}
	}()
}

func (t *Telegram) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			if _, err := t.api.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
				t.log.Error("telegram send failed", zap.Error(err))
			}
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, upd tgbot.Update) {
	m := upd.Message
	if m == nil || m.Chat == nil || m.Chat.ID != t.chatID || !m.IsCommand() {
		return
	}

	name := strings.ToLower(m.Command())
	if name == "help" || name == "start" {
		t.Send(t.help())
		return
	}

	t.mu.RLock()
	fn, ok := t.commands[name]
	t.mu.RUnlock()
	if !ok {
		t.Sendf("Неизвестная команда /%s\n\n%s", name, t.help())
		return
	}
	go func() {
		if reply := fn(ctx, strings.TrimSpace(m.CommandArguments())); reply != "" {
			t.Send(reply)
		}
	}()
}

func (t *Telegram) help() string {
	t.mu.RLock()
	names := make([]string, 0, len(t.commands))
	for n := range t.commands {
		names = append(names, "/"+n)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return "Команды: " + strings.Join(names, ", ")
}

// Log: заглушка без Telegram: всё пишет в лог.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("notify")}
}

func (l *Log) Send(msg string)                  { l.log.Info(msg) }
func (l *Log) Sendf(format string, args ...any) { l.log.Info(fmt.Sprintf(format, args...)) }
