package notify

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/cimillas/site-market/services/api/internal/domain"
	"github.com/pkg/errors"
	telebot "gopkg.in/tucnak/telebot.v2"
)

// StatsSource answers the /stats command.
type StatsSource interface {
	MarketStats(ctx context.Context) (domain.MarketStats, error)
}

type sender interface {
	Send(to telebot.Recipient, what interface{}, options ...interface{}) (*telebot.Message, error)
}

type adminChat string

func (c adminChat) Recipient() string { return string(c) }

// TelegramNotifier posts events to a single admin chat and answers admin
// commands sent from that chat.
type TelegramNotifier struct {
	bot    *telebot.Bot
	sender sender
	chat   adminChat
	logger *log.Logger
}

func NewTelegramNotifier(token, chatID string, logger *log.Logger) (*TelegramNotifier, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram token and chat id are required")
	}
	if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
		return nil, errors.Wrapf(err, "invalid telegram chat id %q", chatID)
	}
	if logger == nil {
		logger = log.Default()
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		Reporter: func(err error) {
			logger.Printf("WARN: telegram: %v", err)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}
	return &TelegramNotifier{bot: bot, sender: bot, chat: adminChat(chatID), logger: logger}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.sender.Send(n.chat, Render(event), telebot.ModeHTML, telebot.NoPreview); err != nil {
		return errors.Wrapf(err, "send %s %s", event.Type, event.ID)
	}
	return nil
}

// ServeCommands polls for admin commands until ctx is done.
func (n *TelegramNotifier) ServeCommands(ctx context.Context, stats StatsSource) {
	n.bot.Handle("/stats", n.statsHandler(ctx, stats))
	go n.bot.Start()
	<-ctx.Done()
	n.bot.Stop()
}

// statsHandler ignores messages from any chat other than the admin chat.
func (n *TelegramNotifier) statsHandler(ctx context.Context, stats StatsSource) func(*telebot.Message) {
	return func(m *telebot.Message) {
		if m.Chat == nil || strconv.FormatInt(m.Chat.ID, 10) != string(n.chat) {
			return
		}
		reply := "❌ Stats are unavailable"
		s, err := stats.MarketStats(ctx)
		if err != nil {
			n.logger.Printf("ERROR: telegram stats: %v", err)
		} else {
			reply = RenderStats(s)
		}
		if _, err := n.sender.Send(m.Chat, reply, telebot.ModeHTML); err != nil {
			n.logger.Printf("WARN: telegram reply: %v", err)
		}
	}
}
