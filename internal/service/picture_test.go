package service

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/ajoubeir/chat-service/internal/registry/blob"
	"github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/stretchr/testify/require"
)

// fakePictureStore keeps picture bytes in a map.
type fakePictureStore struct {
	pictures map[string][]byte
}

func newFakePictureStore() *fakePictureStore {
	return &fakePictureStore{pictures: map[string][]byte{}}
}

func (s *fakePictureStore) Store(ctx context.Context, pictureID string, data io.Reader, maxSize int64, contentType string) (*blob.StoreResult, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	s.pictures[pictureID] = b
	return &blob.StoreResult{Size: int64(len(b))}, nil
}

func (s *fakePictureStore) Retrieve(ctx context.Context, pictureID string) (io.ReadCloser, error) {
	b, ok := s.pictures[pictureID]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *fakePictureStore) Delete(ctx context.Context, pictureID string) error {
	delete(s.pictures, pictureID)
	return nil
}

func (s *fakePictureStore) GetSignedURL(ctx context.Context, pictureID string, expiry time.Duration) (*url.URL, error) {
	return nil, nil
}

func TestUploadAndDownloadPicture(t *testing.T) {
	svc := NewPictureService(newFakePictureStore(), 1024, time.Minute)
	data := []byte{0xff, 0xd8, 0xff, 0xe0}

	id, err := svc.UploadPicture(context.Background(), bytes.NewReader(data), int64(len(data)), "image/jpeg")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	reader, err := svc.DownloadPicture(context.Background(), id)
	require.NoError(t, err)
	defer reader.Close()
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestUploadPicture_GeneratesUniqueIDs(t *testing.T) {
	svc := NewPictureService(newFakePictureStore(), 1024, time.Minute)
	id1, err := svc.UploadPicture(context.Background(), bytes.NewReader([]byte("a")), 1, "image/png")
	require.NoError(t, err)
	id2, err := svc.UploadPicture(context.Background(), bytes.NewReader([]byte("b")), 1, "image/png")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestUploadPicture_RejectsEmpty(t *testing.T) {
	svc := NewPictureService(newFakePictureStore(), 1024, time.Minute)
	_, err := svc.UploadPicture(context.Background(), bytes.NewReader(nil), 0, "image/png")
	var validation *store.ValidationError
	require.ErrorAs(t, err, &validation)

	// Streamed uploads with unknown size are rejected after spooling.
	_, err = svc.UploadPicture(context.Background(), bytes.NewReader(nil), -1, "image/png")
	require.ErrorAs(t, err, &validation)
}

func TestDownloadPicture_NotFound(t *testing.T) {
	svc := NewPictureService(newFakePictureStore(), 1024, time.Minute)
	_, err := svc.DownloadPicture(context.Background(), "missing")
	var notFound *store.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
