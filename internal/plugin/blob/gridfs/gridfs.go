package gridfs

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/ajoubeir/chat-service/internal/config"
	registryblob "github.com/ajoubeir/chat-service/internal/registry/blob"
	"github.com/ajoubeir/chat-service/internal/tempfiles"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name:   "mongo",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (registryblob.PictureStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("gridfs: missing config in context")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return nil, fmt.Errorf("gridfs: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("gridfs: ping failed: %w", err)
	}
	db := client.Database("chat_service")
	return &GridFSPictureStore{
		bucket:  db.GridFSBucket(options.GridFSBucket().SetName("profile_pictures")),
		tempDir: cfg.ResolvedTempDir(),
	}, nil
}

// GridFSPictureStore keeps profile pictures in the same MongoDB database as
// the rest of the service, in a dedicated GridFS bucket keyed by picture id.
type GridFSPictureStore struct {
	bucket  *mongo.GridFSBucket
	tempDir string
}

func (s *GridFSPictureStore) Store(ctx context.Context, pictureID string, data io.Reader, maxSize int64, contentType string) (*registryblob.StoreResult, error) {
	hasher := sha256.New()
	limited := io.LimitReader(data, maxSize+1)

	// Wrap reader to track size and compute hash while uploading.
	counted := &countingReader{r: io.TeeReader(limited, hasher)}

	if err := s.bucket.UploadFromStreamWithID(ctx, pictureID, "profile-picture", counted); err != nil {
		return nil, fmt.Errorf("gridfs: upload: %w", err)
	}

	if counted.n > maxSize {
		// Delete the oversized upload.
		_ = s.bucket.Delete(ctx, pictureID)
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", maxSize)
	}

	return &registryblob.StoreResult{
		Size:   counted.n,
		SHA256: fmt.Sprintf("%x", hasher.Sum(nil)),
	}, nil
}

func (s *GridFSPictureStore) Retrieve(ctx context.Context, pictureID string) (io.ReadCloser, error) {
	tmp, err := tempfiles.Create(s.tempDir, "chat-service-gridfs-*")
	if err != nil {
		return nil, fmt.Errorf("gridfs: create temp file: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	ds, err := s.bucket.OpenDownloadStream(ctx, pictureID)
	if err != nil {
		cleanup()
		if errors.Is(err, mongo.ErrFileNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("gridfs: open download stream: %w", err)
	}
	defer ds.Close()

	if _, err := io.Copy(tmp, ds); err != nil {
		cleanup()
		return nil, fmt.Errorf("gridfs: spool download stream: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, fmt.Errorf("gridfs: rewind temp file: %w", err)
	}
	return tempfiles.NewDeleteOnClose(tmp), nil
}

func (s *GridFSPictureStore) Delete(ctx context.Context, pictureID string) error {
	err := s.bucket.Delete(ctx, pictureID)
	if errors.Is(err, mongo.ErrFileNotFound) {
		return nil
	}
	return err
}

func (s *GridFSPictureStore) GetSignedURL(_ context.Context, _ string, _ time.Duration) (*url.URL, error) {
	return nil, fmt.Errorf("signed URLs not supported for the gridfs picture store")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
