package redis

import (
	"context"
	"testing"
	"time"

	"github.com/ajoubeir/chat-service/internal/model"
	"github.com/ajoubeir/chat-service/internal/testutil/testredis"
	"github.com/stretchr/testify/require"
)

func TestProfileCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()
	c, err := LoadFromURL(ctx, testredis.StartRedis(t))
	require.NoError(t, err)
	require.True(t, c.Available())

	// A miss is nil, not an error.
	got, err := c.Get(ctx, "john")
	require.NoError(t, err)
	require.Nil(t, got)

	pictureID := "pic-1"
	profile := model.Profile{
		Username:         "john",
		FirstName:        "John",
		LastName:         "Smith",
		ProfilePictureID: &pictureID,
	}
	require.NoError(t, c.Set(ctx, profile, time.Minute))

	got, err = c.Get(ctx, "john")
	require.NoError(t, err)
	require.Equal(t, &profile, got)

	require.NoError(t, c.Remove(ctx, "john"))
	got, err = c.Get(ctx, "john")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestProfileCacheEntriesExpire(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()
	c, err := LoadFromURL(ctx, testredis.StartRedis(t))
	require.NoError(t, err)

	profile := model.Profile{Username: "brief", FirstName: "Brief", LastName: "Life"}
	require.NoError(t, c.Set(ctx, profile, 100*time.Millisecond))

	require.Eventually(t, func() bool {
		got, err := c.Get(ctx, "brief")
		return err == nil && got == nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestLoadRejectsBadURL(t *testing.T) {
	_, err := LoadFromURL(context.Background(), "redis://bad url with spaces")
	require.Error(t, err)
}
