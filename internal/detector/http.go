package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/digkill/TGFaceSwapBot/internal/faceswap"
)

const detectPath = "/api/v1/detect"

// HTTPClient calls a remote face detection service.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

type detectRequest struct {
	Image  string `json:"image"`
	Format string `json:"format"`
}

type detectResponse struct {
	Faces []faceswap.Region `json:"faces"`
	Error string            `json:"error,omitempty"`
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *HTTPClient) DetectFaces(ctx context.Context, img image.Image) ([]faceswap.Region, error) {
	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("encode detection payload: %w", err)
	}

	body, err := json.Marshal(detectRequest{
		Image:  base64.StdEncoding.EncodeToString(encoded.Bytes()),
		Format: "jpeg",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	fullURL := c.baseURL + detectPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post detector: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("face detection failed", "status", resp.StatusCode, "url", fullURL, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("detector error: status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	var out detectResponse
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return nil, fmt.Errorf("decode detector response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if out.Error != "" {
		return nil, fmt.Errorf("detector error: %s", out.Error)
	}

	if c.log != nil {
		c.log.Debug("faces detected", "count", len(out.Faces))
	}
	return out.Faces, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
