package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxImgurResponseBytes = 1 << 20

// ImgurUploader posts images to an Imgur-compatible endpoint.
type ImgurUploader struct {
	endpoint string
	clientID string
	client   *http.Client
}

// NewImgurUploader returns an uploader for endpoint. A nil client gets a
// default with a 30 second timeout.
func NewImgurUploader(endpoint, clientID string, client *http.Client) *ImgurUploader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImgurUploader{endpoint: endpoint, clientID: clientID, client: client}
}

type imgurResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		Link  string `json:"link"`
		Error any    `json:"error"`
	} `json:"data"`
}

func (u *ImgurUploader) Upload(ctx context.Context, payload []byte, _ string) (string, error) {
	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(payload))
	form.Set("type", "base64")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build imgur request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Client-ID "+u.clientID)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("imgur request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImgurResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read imgur response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("imgur upload failed with status %d", resp.StatusCode)
	}

	var parsed imgurResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode imgur response: %w", err)
	}
	if parsed.Data.Link == "" {
		return "", fmt.Errorf("imgur response has no link")
	}
	return parsed.Data.Link, nil
}
