// Package media turns encoded image payloads into durable URLs.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"socialhub/internal/config"
	"socialhub/internal/observability"
)

// Provider names accepted by MEDIA_PROVIDER.
const (
	ProviderImgur = "imgur"
	ProviderS3    = "s3"
	ProviderLocal = "local"
	ProviderNone  = "none"
)

var (
	ErrEmptyPayload    = errors.New("media payload is empty")
	ErrInvalidEncoding = errors.New("media payload is not valid base64")
	ErrUnsupportedType = errors.New("media payload is not a supported image")
	ErrUploadTimeout   = errors.New("media upload timed out")
)

// Uploader stores payload and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, payload []byte, contentType string) (string, error)
}

// UploaderFunc adapts a function to Uploader.
type UploaderFunc func(ctx context.Context, payload []byte, contentType string) (string, error)

func (f UploaderFunc) Upload(ctx context.Context, payload []byte, contentType string) (string, error) {
	return f(ctx, payload, contentType)
}

// DecodePayload accepts plain base64 or a data URI
// ("data:image/png;base64,....") and returns the bytes with their sniffed
// content type.
func DecodePayload(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", ErrEmptyPayload
	}

	declared := ""
	if strings.HasPrefix(raw, "data:") {
		meta, data, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, "", ErrInvalidEncoding
		}
		declared = strings.TrimSuffix(meta, ";base64")
		raw = data
	}

	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if payload, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
			return nil, "", ErrInvalidEncoding
		}
	}
	if len(payload) == 0 {
		return nil, "", ErrEmptyPayload
	}

	detected := http.DetectContentType(payload)
	if !isAllowedImageType(detected) {
		return nil, "", ErrUnsupportedType
	}
	if declared != "" && isAllowedImageType(declared) && declared != detected {
		return nil, "", fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedType, declared, detected)
	}
	return payload, detected, nil
}

func isAllowedImageType(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

// WithTimeout bounds every upload by d. An upload still running at the
// deadline is abandoned and reported as ErrUploadTimeout.
func WithTimeout(u Uploader, d time.Duration) Uploader {
	if d <= 0 {
		return u
	}
	return UploaderFunc(func(ctx context.Context, payload []byte, contentType string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			url string
			err error
		}
		done := make(chan result, 1)
		go func() {
			url, err := u.Upload(ctx, payload, contentType)
			done <- result{url, err}
		}()

		select {
		case r := <-done:
			if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w after %s: %v", ErrUploadTimeout, d, r.err)
			}
			return r.url, r.err
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w after %s", ErrUploadTimeout, d)
			}
			return "", ctx.Err()
		}
	})
}

// Instrument records socialhub_media_uploads_total and upload latency for
// provider.
func Instrument(provider string, u Uploader) Uploader {
	return UploaderFunc(func(ctx context.Context, payload []byte, contentType string) (string, error) {
		start := time.Now()
		url, err := u.Upload(ctx, payload, contentType)
		observability.MediaUploadDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())

		result := "ok"
		switch {
		case errors.Is(err, ErrUploadTimeout):
			result = "timeout"
		case err != nil:
			result = "error"
		}
		observability.MediaUploads.WithLabelValues(provider, result).Inc()
		return url, err
	})
}

// New builds the uploader selected by cfg.MediaProvider, wrapped with
// metrics and the configured timeout. It returns nil for ProviderNone.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	var (
		u   Uploader
		err error
	)
	switch cfg.MediaProvider {
	case ProviderNone:
		return nil, nil
	case ProviderImgur:
		u = NewImgurUploader(cfg.ImgurUploadURL, cfg.ImgurClientID, nil)
	case ProviderS3:
		u, err = NewS3Uploader(ctx, S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	case ProviderLocal, "":
		u = NewLocalUploader(cfg.MediaLocalDir, cfg.MediaPublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown media provider %q", cfg.MediaProvider)
	}
	if err != nil {
		return nil, err
	}

	provider := cfg.MediaProvider
	if provider == "" {
		provider = ProviderLocal
	}
	return WithTimeout(Instrument(provider, u), cfg.MediaUploadTimeout()), nil
}
