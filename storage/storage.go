// Package storage is the blob-store capability for product images, store
// logos and avatars. Like the cache it is advisory: when S3 is not
// configured (or errors), uploads degrade to base64 data URLs so the
// request still completes.
package storage

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Uploader stores a blob and returns a URL the frontend can render.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Inline is the fallback uploader: it returns a data URL embedding the
// payload, so images survive without any external service.
type Inline struct{}

func (Inline) Upload(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}

// WithFallback wraps a primary uploader so failures degrade to inlining
// rather than failing the request.
type WithFallback struct {
	Primary Uploader
}

func (w WithFallback) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if w.Primary != nil {
		if url, err := w.Primary.Upload(ctx, key, contentType, data); err == nil {
			return url, nil
		}
	}
	return Inline{}.Upload(ctx, key, contentType, data)
}
