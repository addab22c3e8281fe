package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/fxsnapshot/fxsnapshot/internal/db"
	"github.com/fxsnapshot/fxsnapshot/internal/refresh"
	"github.com/fxsnapshot/fxsnapshot/internal/render"
)

type fakeAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeController struct {
	busy     bool
	run      db.Run
	has      bool
	exported time.Time
}

func (c *fakeController) Trigger() bool { return !c.busy }
func (c *fakeController) LastRun(context.Context) (db.Run, bool, error) {
	return c.run, c.has, nil
}
func (c *fakeController) LastExport(context.Context) (time.Time, bool, error) {
	return c.exported, !c.exported.IsZero(), nil
}
func (c *fakeController) Backup(context.Context, string) error { return errors.New("disk full") }

func TestNotifyRunSendsToEveryChat(t *testing.T) {
	api := &fakeAPI{}
	b := newBot(api, []int64{1, 2}, render.Options{Calendar: "gregorian"})

	b.NotifyRun(context.Background(), refresh.Report{RunID: "r1", StartedAt: time.Now()})
	require.Len(t, api.sent, 2)
	require.Equal(t, int64(2), api.sent[1].(tgbotapi.MessageConfig).ChatID)
	require.Contains(t, api.texts()[0], "Run: r1")
}

func TestNotifyRunThrottlesFailures(t *testing.T) {
	api := &fakeAPI{}
	b := newBot(api, []int64{1}, render.Options{})
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	failed := refresh.Report{RunID: "r", StartedAt: now, Err: refresh.ErrNoRecords}
	b.NotifyRun(context.Background(), failed)
	b.NotifyRun(context.Background(), failed)
	require.Len(t, api.sent, 1)

	// successes are never throttled
	b.NotifyRun(context.Background(), refresh.Report{RunID: "ok", StartedAt: now})
	require.Len(t, api.sent, 2)

	now = now.Add(FailureCooldown)
	b.NotifyRun(context.Background(), failed)
	require.Len(t, api.sent, 3)
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	ctrl := &fakeController{}
	b := newBot(&fakeAPI{}, nil, render.Options{Calendar: "gregorian"})

	require.Equal(t, "Not available.", b.command(ctx, "status"))

	b.SetController(ctrl)
	require.Equal(t, "No refresh has run yet.", b.command(ctx, "status"))
	require.Contains(t, b.command(ctx, "refresh"), "started")

	ctrl.busy = true
	require.Contains(t, b.command(ctx, "refresh"), "already running")

	ctrl.has = true
	ctrl.run = db.Run{
		ID:           "r9",
		StartedAt:    time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
		Records:      140,
		RemovedCodes: []string{"ZWL"},
		Error:        "boom",
	}
	text := b.command(ctx, "status")
	require.Contains(t, text, "Last run: r9")
	require.Contains(t, text, "2026/10/19 - 10:00")
	require.Contains(t, text, "Dropped: ZWL")
	require.Contains(t, text, "Error: boom")
	require.Contains(t, text, "Last export: never")

	ctrl.exported = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	require.Contains(t, b.command(ctx, "status"), "Last export: 2026/10/19 - 09:00")

	require.Equal(t, helpText, b.command(ctx, "start"))
}

func TestHandleMessageIgnoresUnknownChats(t *testing.T) {
	api := &fakeAPI{}
	b := newBot(api, []int64{7}, render.Options{})
	b.SetController(&fakeController{})

	msg := func(chatID int64, text string) tgbotapi.Message {
		return tgbotapi.Message{
			Text:     text,
			Chat:     &tgbotapi.Chat{ID: chatID},
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		}
	}

	b.handleMessage(context.Background(), msg(99, "/status"))
	require.Empty(t, api.sent)

	b.handleMessage(context.Background(), msg(7, "/status"))
	require.Equal(t, []string{"No refresh has run yet."}, api.texts())

	b.handleMessage(context.Background(), msg(7, "/backup"))
	require.Equal(t, "Backup failed: disk full", api.texts()[1])
}
