package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStore_CreateAndGet(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Hour, nil)
	ctx := context.Background()

	created, err := store.Create(ctx, Session{
		VisitorID: "visitor-1",
		PartnerID: 42,
		Email:     "user@example.com",
		Name:      "Ali Yilmaz",
	})
	require.NoError(t, err)
	assert.False(t, created.VerifiedAt.IsZero())

	got, err := store.Get(ctx, "visitor-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42, got.PartnerID)
	assert.Equal(t, "user@example.com", got.Email)
	assert.Equal(t, "Ali Yilmaz", got.Name)
}

func TestStore_GetMissing(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Hour, nil)

	got, err := store.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_TTLExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, time.Minute, nil)
	ctx := context.Background()

	_, err := store.Create(ctx, Session{VisitorID: "v", PartnerID: 1})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "v")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ExtendRefreshesTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewStore(client, time.Minute, nil)
	ctx := context.Background()

	_, err := store.Create(ctx, Session{VisitorID: "v", PartnerID: 1})
	require.NoError(t, err)

	mr.FastForward(45 * time.Second)
	ok, err := store.Extend(ctx, "v")
	require.NoError(t, err)
	assert.True(t, ok)

	// Past the original deadline, inside the extended one.
	mr.FastForward(45 * time.Second)
	got, err := store.Get(ctx, "v")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_ExtendMissing(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Minute, nil)

	ok, err := store.Extend(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Destroy(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewStore(client, time.Minute, nil)
	ctx := context.Background()

	_, err := store.Create(ctx, Session{VisitorID: "v", PartnerID: 1})
	require.NoError(t, err)

	existed, err := store.Destroy(ctx, "v")
	require.NoError(t, err)
	assert.True(t, existed)

	auth, err := store.IsAuthenticated(ctx, "v")
	require.NoError(t, err)
	assert.False(t, auth)

	existed, err = store.Destroy(ctx, "v")
	require.NoError(t, err)
	assert.False(t, existed)
}
