package gridfs

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ajoubeir/chat-service/internal/config"
	"github.com/ajoubeir/chat-service/internal/testutil/testmongo"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (context.Context, *GridFSPictureStore) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	cfg := config.DefaultConfig()
	cfg.DBURL = testmongo.StartMongo(t)
	cfg.TempDir = t.TempDir()
	ctx := config.WithContext(context.Background(), &cfg)

	store, err := load(ctx)
	require.NoError(t, err)
	return ctx, store.(*GridFSPictureStore)
}

func TestStoreAndRetrievePicture(t *testing.T) {
	ctx, store := newTestStore(t)
	content := []byte("fake png bytes")

	result, err := store.Store(ctx, "pic-1", bytes.NewReader(content), 1024, "image/png")
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), result.Size)
	require.NotEmpty(t, result.SHA256)

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

	// The oversized upload must not leave a retrievable picture behind.
	reader, err := store.Retrieve(ctx, "pic-big")
	require.NoError(t, err)
	require.Nil(t, reader)
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

func TestSignedURLsUnsupported(t *testing.T) {
	ctx, store := newTestStore(t)

	_, err := store.GetSignedURL(ctx, "pic-1", 5*time.Minute)
	require.Error(t, err)
}
