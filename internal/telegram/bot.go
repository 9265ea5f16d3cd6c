package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TGFaceSwapBot/internal/config"
	"github.com/digkill/TGFaceSwapBot/internal/metrics"
	"github.com/digkill/TGFaceSwapBot/internal/service"
)

const sessionSweepInterval = 5 * time.Minute

var (
	errNotImage      = errors.New("upload is not an image")
	errImageTooLarge = errors.New("image exceeds size limit")
)

// QuotaReporter exposes the daily limit for the usage guide.
type QuotaReporter interface {
	Limit() int
	Remaining(ctx context.Context, userID int64) (int, error)
}

type Bot struct {
	cfg        config.Config
	api        *tgbotapi.BotAPI
	log        *slog.Logger
	users      *service.UserService
	swaps      *service.SwapService
	quota      QuotaReporter
	broadcast  *service.BroadcastService
	stats      *service.StatsService
	sender     *Sender
	dispatch   *dispatcher
	httpClient *http.Client
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, users *service.UserService, swaps *service.SwapService, quota QuotaReporter, broadcast *service.BroadcastService, stats *service.StatsService, sender *Sender) *Bot {
	return &Bot{
		cfg:        cfg,
		api:        api,
		log:        log,
		users:      users,
		swaps:      swaps,
		quota:      quota,
		broadcast:  broadcast,
		stats:      stats,
		sender:     sender,
		dispatch:   newDispatcher(),
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	sweep := time.NewTicker(sessionSweepInterval)
	defer sweep.Stop()
	b.log.Info("telegram bot started", "daily_limit", b.quota.Limit())

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				b.dispatch.Wait()
				return nil
			}
			msg := update.Message
			if msg == nil || msg.From == nil {
				continue
			}
			b.dispatch.Submit(msg.From.ID, func() { b.handleMessage(ctx, msg) })
		case <-sweep.C:
			if removed := b.swaps.SweepSessions(); removed > 0 {
				b.log.Info("expired pending images dropped", "count", removed)
			}
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.dispatch.Wait()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 || msg.Document != nil {
		b.ensureUser(ctx, msg.From)
		b.handleImage(ctx, msg)
		return
	}

	b.sendText(msg.Chat.ID, "Send me 2 clear face photos, one after another. Type /guide to learn more.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "guide", "help":
		b.handleGuide(ctx, msg)
	case "broadcast":
		if b.isAdmin(msg.From) {
			b.handleBroadcast(ctx, msg)
		}
	case "stats":
		if b.isAdmin(msg.From) {
			b.handleStats(ctx, msg)
		}
	default:
		b.sendText(msg.Chat.ID, "Unknown command. Type /guide to learn how to use the bot.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	created := b.ensureUser(ctx, msg.From)
	if created && b.cfg.LogChannelID != 0 {
		notice := fmt.Sprintf("👤 New user: %s (ID: %d)", fullName(msg.From), msg.From.ID)
		if err := b.sender.SendText(b.cfg.LogChannelID, notice); err != nil {
			b.log.Error("log channel notice", "err", err)
		}
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, "👋 Welcome to Face Swap Bot!\n\n"+
		"Send me *2 clear face photos*, and I’ll swap them!\n\n"+
		"Type /guide to learn how to use.")
	reply.ParseMode = tgbotapi.ModeMarkdown
	if keyboard, ok := startKeyboard(b.cfg.UpdateChannelURL, b.cfg.DiscussionGroupURL); ok {
		reply.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(reply); err != nil {
		b.log.Error("send start", "err", err)
	}
}

func (b *Bot) handleGuide(ctx context.Context, msg *tgbotapi.Message) {
	remaining, err := b.quota.Remaining(ctx, msg.From.ID)
	if err != nil {
		b.log.Error("remaining quota", "user", msg.From.ID, "err", err)
		remaining = -1
	}
	b.sendMarkdown(msg.Chat.ID, guideText(b.quota.Limit(), remaining))
}

func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	res, err := b.broadcast.Broadcast(ctx, msg.CommandArguments())
	switch {
	case errors.Is(err, service.ErrEmptyBroadcast):
		b.sendText(msg.Chat.ID, "❌ Empty broadcast message.")
	case err != nil:
		b.log.Error("broadcast", "err", err)
		b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ Broadcast interrupted after %d of %d users.", res.Sent, res.Total))
	default:
		b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Broadcast sent to %d users.", res.Sent))
	}
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	stats, err := b.stats.Collect(ctx)
	if err != nil {
		b.log.Error("collect stats", "err", err)
		b.sendText(msg.Chat.ID, "Failed to collect stats, try again later.")
		return
	}
	b.sendMarkdown(msg.Chat.ID, fmt.Sprintf("📊 *Bot Stats:*\n\n👥 Total users: %d\n📅 Active today: %d\n🔁 Swaps today: %d",
		stats.TotalUsers, stats.ActiveToday, stats.SwapsToday))
}

func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message) {
	fileID, err := imageFileID(msg, b.cfg.MaxImageBytes)
	if err != nil {
		b.rejectImage(msg, err)
		return
	}
	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.rejectImage(msg, err)
		return
	}
	b.submitImage(ctx, msg, data)
}

func (b *Bot) rejectImage(msg *tgbotapi.Message, err error) {
	switch {
	case errors.Is(err, errNotImage):
		metrics.RejectedImagesTotal.WithLabelValues("not_image").Inc()
		b.sendText(msg.Chat.ID, "This is not an image. Please send a photo.")
	case errors.Is(err, errImageTooLarge):
		metrics.RejectedImagesTotal.WithLabelValues("too_large").Inc()
		b.sendText(msg.Chat.ID, fmt.Sprintf("The image is too large. The limit is %d MB.", b.cfg.MaxImageBytes>>20))
	default:
		metrics.RejectedImagesTotal.WithLabelValues("download").Inc()
		b.log.Error("download image", "user", msg.From.ID, "err", err)
		b.sendText(msg.Chat.ID, "Could not download the photo, please send it again.")
	}
}

func (b *Bot) submitImage(ctx context.Context, msg *tgbotapi.Message, data []byte) {
	out, err := b.swaps.OnImageReceived(ctx, msg.From.ID, data)
	if err != nil {
		b.log.Error("image submission", "user", msg.From.ID, "err", err)
		b.sendText(msg.Chat.ID, unavailableText)
		return
	}

	if out.Kind == service.OutcomeSwapSuccess {
		photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: "swapped.jpg", Bytes: out.Image})
		photo.Caption = "✅ Face swapped!"
		if _, err := b.api.Send(photo); err != nil {
			b.log.Error("send swap result", "user", msg.From.ID, "request_id", out.RequestID, "err", err)
		}
		return
	}

	text, markdown := outcomeText(out.Kind, b.quota.Limit())
	if markdown {
		b.sendMarkdown(msg.Chat.ID, text)
		return
	}
	b.sendText(msg.Chat.ID, text)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("file path empty")
	}
	if b.cfg.MaxImageBytes > 0 && int64(file.FileSize) > b.cfg.MaxImageBytes {
		return nil, errImageTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram file status: %d", resp.StatusCode)
	}

	body, err := readLimited(resp.Body, b.cfg.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	if _, err := normalizeImageContentType(resp.Header.Get("Content-Type"), body); err != nil {
		return nil, err
	}
	return body, nil
}

// ensureUser registers the sender and reports whether this was the first contact.
// Failures are logged; the request continues without a registration.
func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) bool {
	_, created, err := b.users.Ensure(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		b.log.Error("ensure user", "user", from.ID, "err", err)
		return false
	}
	return created
}

func (b *Bot) isAdmin(from *tgbotapi.User) bool {
	return b.cfg.AdminID != 0 && from != nil && from.ID == b.cfg.AdminID
}

func (b *Bot) sendText(chatID int64, text string) {
	if err := b.sender.SendText(chatID, text); err != nil {
		b.log.Error("send text", "err", err)
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send text", "err", err)
	}
}

const unavailableText = "⚠️ The service is temporarily unavailable, please try again later."

// outcomeText maps a non-success outcome to the reply. The bool reports Markdown formatting.
func outcomeText(kind service.OutcomeKind, limit int) (string, bool) {
	switch kind {
	case service.OutcomeAwaitSecond:
		return "📸 Send another photo to proceed with the face swap.", false
	case service.OutcomeLimitReached:
		return fmt.Sprintf("🚫 You’ve reached your *daily limit* of %d swaps.", limit), true
	case service.OutcomeSwapNoFace:
		return "😔 Couldn't detect faces in both images.", false
	case service.OutcomeSwapFailed:
		return "⚠️ Something went wrong while swapping, please try again with other photos.", false
	default:
		return unavailableText, false
	}
}

// guideText renders the usage guide. A negative remaining omits today's balance.
func guideText(limit, remaining int) string {
	quota := fmt.Sprintf("3. Limit: %d swaps per day.", limit)
	if remaining >= 0 {
		quota = fmt.Sprintf("3. Limit: %d swaps per day, %d left today.", limit, remaining)
	}
	return "📘 *User Guide*:\n\n" +
		"1. Send 2 photos (one after another).\n" +
		"2. The face from the first photo is placed onto the second.\n" +
		quota + "\n\n" +
		"⚠️ Make sure faces are clearly visible!"
}

func startKeyboard(updatesURL, discussionURL string) (tgbotapi.InlineKeyboardMarkup, bool) {
	var rows [][]tgbotapi.InlineKeyboardButton
	if updatesURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("📢 Updates", updatesURL)))
	}
	if discussionURL != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("💬 Discussion", discussionURL)))
	}
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

// imageFileID picks the largest photo size or an image document.
// Declared sizes above maxBytes are rejected before download.
func imageFileID(msg *tgbotapi.Message, maxBytes int64) (string, error) {
	switch {
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		if maxBytes > 0 && int64(photo.FileSize) > maxBytes {
			return "", errImageTooLarge
		}
		return photo.FileID, nil
	case msg.Document != nil:
		if mt := strings.ToLower(msg.Document.MimeType); mt != "" && !strings.HasPrefix(mt, "image/") {
			return "", errNotImage
		}
		if maxBytes > 0 && int64(msg.Document.FileSize) > maxBytes {
			return "", errImageTooLarge
		}
		return msg.Document.FileID, nil
	default:
		return "", errNotImage
	}
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, errImageTooLarge
	}
	return body, nil
}

func normalizeImageContentType(headerCT string, data []byte) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(headerCT))
	if idx := strings.Index(ct, ";"); idx > 0 {
		ct = ct[:idx]
	}
	if ct == "" || ct == "application/octet-stream" || !strings.HasPrefix(ct, "image/") {
		if len(data) > 0 {
			ct = http.DetectContentType(data)
			if idx := strings.Index(ct, ";"); idx > 0 {
				ct = ct[:idx]
			}
		}
	}

	switch ct {
	case "image/jpeg", "image/jpg":
		return "image/jpeg", nil
	case "image/png":
		return "image/png", nil
	case "image/webp":
		return "image/webp", nil
	case "image/gif":
		return "image/gif", nil
	default:
		return "", errNotImage
	}
}

func fullName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.UserName
	}
	return name
}
