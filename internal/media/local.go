package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	MaxImageDimension = 2048
	WebPQuality       = 75
	// maxDecodedPixels rejects decompression bombs before decoding.
	maxDecodedPixels = 50_000_000
)

// LocalUploader re-encodes images as WebP into a directory served by the
// API under baseURL.
type LocalUploader struct {
	dir     string
	baseURL string
	newID   func() string
}

func NewLocalUploader(dir, baseURL string) *LocalUploader {
	return &LocalUploader{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		newID:   uuid.NewString,
	}
}

func (u *LocalUploader) Upload(ctx context.Context, payload []byte, _ string) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if cfg.Width*cfg.Height > maxDecodedPixels {
		return "", fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	encoded, err := encodeWebP(resizeToFit(img, MaxImageDimension, MaxImageDimension), WebPQuality)
	if err != nil {
		return "", fmt.Errorf("encode webp: %w", err)
	}

	name := u.newID() + ".webp"
	if err := writeBytesToFile(filepath.Join(u.dir, name), encoded); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return u.baseURL + "/" + name, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
