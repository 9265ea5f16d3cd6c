package detector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/TGFaceSwapBot/internal/faceswap"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPClientDetectFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, detectPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		raw, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		img, format, err := faceswap.Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces":[{"top":1,"right":9,"bottom":8,"left":2},{"top":10,"right":20,"bottom":20,"left":12}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", "secret", time.Second, discardLogger())
	faces, err := client.DetectFaces(context.Background(), image.NewRGBA(image.Rect(0, 0, 32, 24)))
	require.NoError(t, err)
	assert.Equal(t, []faceswap.Region{
		{Top: 1, Right: 9, Bottom: 8, Left: 2},
		{Top: 10, Right: 20, Bottom: 20, Left: 12},
	}, faces)
}

func TestHTTPClientNoFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":[]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second, discardLogger())
	faces, err := client.DetectFaces(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.Empty(t, faces)
}

func TestHTTPClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second, discardLogger())
	_, err := client.DetectFaces(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")
}

func TestHTTPClientErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":null,"error":"image too large"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", time.Second, discardLogger())
	_, err := client.DetectFaces(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image too large")
}

func TestTruncateBody(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, []rune(truncateBody(long)), 513)
	assert.Equal(t, "short", truncateBody([]byte("  short \n")))
}
