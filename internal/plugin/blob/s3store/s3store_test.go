package s3store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ajoubeir/chat-service/internal/config"
	"github.com/ajoubeir/chat-service/internal/testutil/tests3"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (context.Context, *S3PictureStore) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	cfg := config.DefaultConfig()
	cfg.S3Bucket = tests3.StartS3(t)
	cfg.S3UsePathStyle = true
	cfg.TempDir = t.TempDir()
	ctx := config.WithContext(context.Background(), &cfg)

	store, err := load(ctx)
	require.NoError(t, err)
	return ctx, store.(*S3PictureStore)
}

func TestStoreAndRetrievePicture(t *testing.T) {
	ctx, store := newTestStore(t)
	content := []byte("fake png bytes")

	result, err := store.Store(ctx, "pic-1", bytes.NewReader(content), 1024, "image/png")
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), result.Size)
	require.Equal(t, fmt.Sprintf("%x", sha256.Sum256(content)), result.SHA256)

	reader, err := store.Retrieve(ctx, "pic-1")
	require.NoError(t, err)
	require.NotNil(t, reader)
	defer reader.Close()
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestStoreRejectsOversizedPicture(t *testing.T) {
	ctx, store := newTestStore(t)

	_, err := store.Store(ctx, "pic-big", strings.NewReader("0123456789"), 5, "image/png")
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum size")
}

func TestRetrieveMissingPicture(t *testing.T) {
	ctx, store := newTestStore(t)

	reader, err := store.Retrieve(ctx, "no-such-picture")
	require.NoError(t, err)
	require.Nil(t, reader)
}

func TestDeletePicture(t *testing.T) {
	ctx, store := newTestStore(t)

	_, err := store.Store(ctx, "pic-1", strings.NewReader("bytes"), 1024, "image/png")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "pic-1"))

	reader, err := store.Retrieve(ctx, "pic-1")
	require.NoError(t, err)
	require.Nil(t, reader)

	// Deleting an absent picture is not an error.
	require.NoError(t, store.Delete(ctx, "pic-1"))
}

func TestGetSignedURL(t *testing.T) {
	ctx, store := newTestStore(t)

	_, err := store.Store(ctx, "pic-1", strings.NewReader("bytes"), 1024, "image/png")
	require.NoError(t, err)

	signed, err := store.GetSignedURL(ctx, "pic-1", 5*time.Minute)
	require.NoError(t, err)
	require.Contains(t, signed.Path, "pic-1")
	require.NotEmpty(t, signed.Query().Get("X-Amz-Signature"))
}

func TestPrefixAppliesToKeysOnly(t *testing.T) {
	ctx, store := newTestStore(t)
	store.prefix = "profile-pictures"

	_, err := store.Store(ctx, "pic-1", strings.NewReader("bytes"), 1024, "image/png")
	require.NoError(t, err)

	reader, err := store.Retrieve(ctx, "pic-1")
	require.NoError(t, err)
	require.NotNil(t, reader)
	reader.Close()

	require.Equal(t, "profile-pictures/pic-1", store.s3Key("pic-1"))
}
