package live

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/kartikgopal01/coedit/internal/delta"
	"github.com/kartikgopal01/coedit/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisChannel_ReplaceThenGet(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	ch := NewRedisChannel(client, "test:live:")
	ctx := context.Background()

	empty, err := ch.GetCurrentContent(ctx, "doc-1")
	require.NoError(t, err)
	require.Empty(t, empty.Ops)

	require.NoError(t, ch.ReplaceContent(ctx, "doc-1", delta.Text("hello\n"), OriginUser))

	got, err := ch.GetCurrentContent(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, "hello\n", got.PlainText())
	require.True(t, m.Exists("test:live:doc-1"))
}

func TestRedisChannel_SubscribeReceivesOrigin(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	ch := NewRedisChannel(client, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := ch.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, ch.ReplaceContent(ctx, "doc-1", delta.Text("v1\n"), OriginRollback))

	select {
	case u := <-updates:
		require.Equal(t, "doc-1", u.DocumentID)
		require.Equal(t, OriginRollback, u.Origin)
		require.Equal(t, ch.Source(), u.Source)
		require.Equal(t, "v1\n", u.Content.PlainText())
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for update")
	}
}

func TestRedisChannel_Unavailable(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1})
	m.Close()

	ch := NewRedisChannel(client, "")
	ctx := context.Background()

	_, err = ch.GetCurrentContent(ctx, "doc-1")
	require.ErrorIs(t, err, domain.ErrLiveChannelUnavailable)

	err = ch.ReplaceContent(ctx, "doc-1", delta.Text("x"), OriginRollback)
	require.ErrorIs(t, err, domain.ErrLiveChannelUnavailable)
}

func TestRedisChannel_CorruptState(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Set("live:doc-1", "not a delta"))

	ch := NewRedisChannel(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	_, err = ch.GetCurrentContent(context.Background(), "doc-1")
	require.ErrorIs(t, err, domain.ErrMalformedContent)
}
