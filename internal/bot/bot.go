// Package bot delivers run reports to Telegram chats and answers a few operator
// commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fxsnapshot/fxsnapshot/internal/db"
	"github.com/fxsnapshot/fxsnapshot/internal/refresh"
	"github.com/fxsnapshot/fxsnapshot/internal/render"
	"github.com/fxsnapshot/fxsnapshot/internal/utils"
)

// FailureCooldown is the minimum gap between two failure reports to the same chat.
const FailureCooldown = 30 * time.Minute

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Controller is what operator commands act on.
type Controller interface {
	Trigger() bool
	LastRun(ctx context.Context) (db.Run, bool, error)
	LastExport(ctx context.Context) (time.Time, bool, error)
	Backup(ctx context.Context, path string) error
}

type Bot struct {
	api    API
	botAPI *tgbotapi.BotAPI
	chats  []int64
	report render.Options
	ctrl   Controller

	mu             sync.Mutex
	lastFailNotify map[int64]time.Time
	now            func() time.Time
}

func New(token string, chats []int64, report render.Options, debug bool) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	b := newBot(api, chats, report)
	b.botAPI = api
	return b, nil
}

func newBot(api API, chats []int64, report render.Options) *Bot {
	return &Bot{
		api:            api,
		chats:          chats,
		report:         report,
		lastFailNotify: map[int64]time.Time{},
		now:            time.Now,
	}
}

func logger() *slog.Logger {
	return slog.Default().With("component", "bot")
}

func (b *Bot) SetController(c Controller) { b.ctrl = c }

// NotifyRun sends the run report to every configured chat. Failure reports are
// throttled per chat by FailureCooldown.
func (b *Bot) NotifyRun(_ context.Context, rep refresh.Report) {
	text := render.RunReport(rep, b.report)
	for _, chatID := range b.chats {
		if rep.Err != nil && !b.allowFailure(chatID) {
			logger().Debug("failure report throttled", "chat_id", chatID)
			continue
		}
		b.send(chatID, text)
	}
}

func (b *Bot) allowFailure(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if last, ok := b.lastFailNotify[chatID]; ok && now.Sub(last) < FailureCooldown {
		return false
	}
	b.lastFailNotify[chatID] = now
	return true
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		logger().Warn("send message", "chat_id", chatID, "err", err)
	}
}

// Run receives updates until ctx is done. Only configured chats are answered.
func (b *Bot) Run(ctx context.Context) error {
	if b.botAPI == nil {
		return fmt.Errorf("telegram: bot not connected")
	}
	logger().Info("bot authorized", "username", b.botAPI.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}
	updates := b.botAPI.GetUpdatesChan(u)
	defer b.botAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				b.handleMessage(ctx, *upd.Message)
			}
		}
	}
}

func (b *Bot) allowed(chatID int64) bool {
	for _, id := range b.chats {
		if id == chatID {
			return true
		}
	}
	return false
}

func (b *Bot) handleMessage(ctx context.Context, msg tgbotapi.Message) {
	if msg.Chat == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	if !b.allowed(chatID) {
		logger().Warn("command from unknown chat", "chat_id", chatID, "command", msg.Command())
		return
	}
	if msg.Command() == "backup" {
		b.sendBackup(ctx, chatID)
		return
	}
	b.send(chatID, b.command(ctx, msg.Command()))
}

func (b *Bot) command(ctx context.Context, cmd string) string {
	if b.ctrl == nil {
		return "Not available."
	}
	switch cmd {
	case "refresh":
		if b.ctrl.Trigger() {
			return "🔄 Refresh started."
		}
		return "⏳ A refresh is already running."
	case "status":
		run, ok, err := b.ctrl.LastRun(ctx)
		if err != nil {
			return "Error: " + err.Error()
		}
		if !ok {
			return "No refresh has run yet."
		}
		exportedAt, exported, err := b.ctrl.LastExport(ctx)
		if err != nil {
			logger().Warn("read last export", "err", err)
		}
		if !exported {
			exportedAt = time.Time{}
		}
		return statusText(run, exportedAt, b.report.Calendar)
	default:
		return helpText
	}
}

const helpText = "/status last refresh\n/refresh start a refresh now\n/backup send a copy of the database"

func statusText(run db.Run, exportedAt time.Time, calendar string) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Last run: %s\n", run.ID)
	fmt.Fprintf(&s, "Started: %s\n", utils.FormatDateTime(calendar, run.StartedAt))
	if !exportedAt.IsZero() {
		fmt.Fprintf(&s, "Last export: %s\n", utils.FormatDateTime(calendar, exportedAt))
	} else {
		s.WriteString("Last export: never\n")
	}
	fmt.Fprintf(&s, "Records: %d, failed pages: %d, discarded: %d\n", run.Records, run.FailedURLs, run.Discarded)
	if len(run.RemovedCodes) > 0 {
		fmt.Fprintf(&s, "Dropped: %s\n", strings.Join(run.RemovedCodes, ", "))
	}
	if run.Error != "" {
		fmt.Fprintf(&s, "Error: %s\n", run.Error)
	}
	return strings.TrimSpace(s.String())
}

func (b *Bot) sendBackup(ctx context.Context, chatID int64) {
	if b.ctrl == nil {
		return
	}
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("backup_%d_divisas.db", b.now().Unix()))
	defer os.Remove(tmp)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := b.ctrl.Backup(ctx, tmp); err != nil {
		b.send(chatID, "Backup failed: "+err.Error())
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(tmp))
	doc.Caption = "📦 Backup DB"
	if _, err := b.api.Send(doc); err != nil {
		logger().Warn("send backup", "chat_id", chatID, "err", err)
	}
}
