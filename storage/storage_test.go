package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineUpload(t *testing.T) {
	url, err := Inline{}.Upload(context.Background(), "avatars/1/x", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5nLWJ5dGVz", url)
}

type stubUploader struct {
	url string
	err error
}

func (s stubUploader) Upload(context.Context, string, string, []byte) (string, error) {
	return s.url, s.err
}

func TestWithFallback(t *testing.T) {
	ctx := context.Background()

	// Primary succeeds: its URL wins.
	url, err := WithFallback{Primary: stubUploader{url: "https://cdn/x"}}.
		Upload(ctx, "k", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x", url)

	// Primary fails: degrade to a data URL instead of erroring.
	url, err = WithFallback{Primary: stubUploader{err: errors.New("s3 down")}}.
		Upload(ctx, "k", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Contains(t, url, "data:image/png;base64,")

	// No primary at all behaves the same.
	url, err = WithFallback{}.Upload(ctx, "k", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Contains(t, url, "data:image/png;base64,")
}
