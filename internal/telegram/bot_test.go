package telegram

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TGFaceSwapBot/internal/service"
)

func TestNormalizeImageContentType(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	ct, err := normalizeImageContentType("image/jpeg; charset=binary", nil)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	ct, err = normalizeImageContentType("application/octet-stream", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct, "sniffed from the body")

	_, err = normalizeImageContentType("", []byte("%PDF-1.7 not a picture"))
	assert.ErrorIs(t, err, errNotImage)

	_, err = normalizeImageContentType("image/tiff", nil)
	assert.ErrorIs(t, err, errNotImage)
}

func TestImageFileID(t *testing.T) {
	msg := &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
		{FileID: "small", FileSize: 100},
		{FileID: "large", FileSize: 1000},
	}}
	id, err := imageFileID(msg, 2000)
	require.NoError(t, err)
	assert.Equal(t, "large", id)

	_, err = imageFileID(msg, 500)
	assert.ErrorIs(t, err, errImageTooLarge)

	doc := &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"}}
	id, err = imageFileID(doc, 0)
	require.NoError(t, err)
	assert.Equal(t, "doc", id)

	pdf := &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "pdf", MimeType: "application/pdf"}}
	_, err = imageFileID(pdf, 0)
	assert.ErrorIs(t, err, errNotImage)

	_, err = imageFileID(&tgbotapi.Message{Text: "hi"}, 0)
	assert.ErrorIs(t, err, errNotImage)
}

func TestReadLimited(t *testing.T) {
	body, err := readLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(body))

	_, err = readLimited(strings.NewReader("123456"), 5)
	assert.ErrorIs(t, err, errImageTooLarge)

	body, err = readLimited(strings.NewReader("123456"), 0)
	require.NoError(t, err)
	assert.Len(t, body, 6)
}

func TestOutcomeText(t *testing.T) {
	text, md := outcomeText(service.OutcomeAwaitSecond, 5)
	assert.Contains(t, text, "Send another photo")
	assert.False(t, md)

	text, md = outcomeText(service.OutcomeLimitReached, 7)
	assert.Contains(t, text, "*daily limit* of 7 swaps")
	assert.True(t, md)

	text, _ = outcomeText(service.OutcomeSwapNoFace, 5)
	assert.Contains(t, text, "Couldn't detect faces")

	text, _ = outcomeText(service.OutcomeSwapFailed, 5)
	assert.Contains(t, text, "went wrong")
}

func TestGuideText(t *testing.T) {
	assert.Contains(t, guideText(5, 3), "5 swaps per day, 3 left today")
	assert.Contains(t, guideText(5, -1), "3. Limit: 5 swaps per day.")
}

func TestStartKeyboard(t *testing.T) {
	_, ok := startKeyboard("", "")
	assert.False(t, ok)

	kb, ok := startKeyboard("https://t.me/updates", "https://t.me/chat")
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	require.NotNil(t, kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/updates", *kb.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/chat", *kb.InlineKeyboard[1][0].URL)

	kb, ok = startKeyboard("", "https://t.me/chat")
	require.True(t, ok)
	assert.Len(t, kb.InlineKeyboard, 1)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", fullName(&tgbotapi.User{FirstName: "Ada", LastName: "Lovelace"}))
	assert.Equal(t, "ada", fullName(&tgbotapi.User{UserName: "ada"}))
}

func TestDispatcherKeepsPerUserOrder(t *testing.T) {
	d := newDispatcher()
	var mu sync.Mutex
	seen := map[int64][]int{}

	for i := 0; i < 50; i++ {
		for _, user := range []int64{1, 2, 3} {
			i, user := i, user
			d.Submit(user, func() {
				mu.Lock()
				seen[user] = append(seen[user], i)
				mu.Unlock()
			})
		}
	}
	d.Wait()

	for _, user := range []int64{1, 2, 3} {
		require.Len(t, seen[user], 50)
		for i, v := range seen[user] {
			assert.Equal(t, i, v)
		}
	}
	assert.Empty(t, d.queues)
}
