package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent/intenttest"
)

type serverStore struct {
	intent.Store
	mr *miniredis.Miniredis
}

func open(t *testing.T, mr *miniredis.Miniredis, ttl time.Duration) *Client {
	t.Helper()
	c, err := Open(context.Background(), Options{Addr: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStoreContract(t *testing.T) {
	intenttest.RunContract(t, intenttest.Factory{
		Open: func(t *testing.T) intent.Store {
			mr := miniredis.RunT(t)
			return &serverStore{Store: open(t, mr, 0).Scope("client-1"), mr: mr}
		},
		Reopen: func(t *testing.T, prev intent.Store) intent.Store {
			ss := prev.(*serverStore)
			return &serverStore{Store: open(t, ss.mr, 0).Scope("client-1"), mr: ss.mr}
		},
	})
}

func TestPendingSlotExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := open(t, mr, time.Hour).Scope("client-1")

	require.NoError(t, s.Save(ctx, intenttest.Sample()))
	assert.Equal(t, time.Hour, mr.TTL("reservation:client-1:pending_reservation"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearKeepsNewerAttempt(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := open(t, mr, 0).Scope("client-1")

	first := intenttest.Sample()
	second := intenttest.Sample()
	second.SessionReference = "r2"
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))
	require.NoError(t, s.Clear(ctx, first.SessionReference))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r2", got.SessionReference)
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := open(t, mr, 0).Scope("client-1")
	mr.Close()

	err := s.Save(ctx, intenttest.Sample())
	require.Error(t, err)
	assert.ErrorIs(t, err, intent.ErrStoreUnavailable)
}
