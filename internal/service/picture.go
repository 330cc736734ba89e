package service

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/ajoubeir/chat-service/internal/registry/blob"
	"github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// PictureService stores and retrieves profile pictures, assigning each upload
// a generated id.
type PictureService struct {
	pictures  blob.PictureStore
	maxSize   int64
	urlExpiry time.Duration
}

func NewPictureService(pictures blob.PictureStore, maxSize int64, urlExpiry time.Duration) *PictureService {
	return &PictureService{pictures: pictures, maxSize: maxSize, urlExpiry: urlExpiry}
}

// UploadPicture stores the picture data and returns the generated picture id.
// Empty uploads are rejected.
func (s *PictureService) UploadPicture(ctx context.Context, data io.Reader, size int64, contentType string) (string, error) {
	if size == 0 {
		return "", &store.ValidationError{Field: "file", Message: "picture upload must not be empty"}
	}
	pictureID := uuid.New().String()
	result, err := s.pictures.Store(ctx, pictureID, data, s.maxSize, contentType)
	if err != nil {
		return "", err
	}
	if result.Size == 0 {
		// size was unknown up front (streamed upload); reject after spooling.
		if err := s.pictures.Delete(ctx, pictureID); err != nil {
			log.Warn("Empty picture cleanup failed", "pictureId", pictureID, "err", err)
		}
		return "", &store.ValidationError{Field: "file", Message: "picture upload must not be empty"}
	}
	log.Debug("Picture stored", "pictureId", pictureID, "size", result.Size)
	return pictureID, nil
}

// DownloadPicture returns a reader over the picture's bytes, or a not-found
// error when the id is unknown.
func (s *PictureService) DownloadPicture(ctx context.Context, pictureID string) (io.ReadCloser, error) {
	if isBlank(pictureID) {
		return nil, &store.ValidationError{Field: "id", Message: "picture id must not be empty"}
	}
	reader, err := s.pictures.Retrieve(ctx, pictureID)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, &store.NotFoundError{Resource: "picture", ID: pictureID}
	}
	return reader, nil
}

// SignedDownloadURL returns a time-limited direct download URL for backends
// that support it. Backends that cannot sign URLs return an error; callers
// fall back to streaming through the service.
func (s *PictureService) SignedDownloadURL(ctx context.Context, pictureID string) (*url.URL, error) {
	return s.pictures.GetSignedURL(ctx, pictureID, s.urlExpiry)
}
