// Package intenttest provides fixtures, an in-memory Store and a shared
// contract suite that every intent.Store backend runs in its own tests.
package intenttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
)

// Sample returns the reference intent used across the test suites.
func Sample() intent.Intent {
	return intent.Intent{
		SessionReference: "r1",
		ItemID:           "I1",
		Contact: intent.Contact{
			FullName:        "A",
			Email:           "a@x.com",
			PhoneNumber:     "1",
			DeliveryAddress: "addr",
		},
		Fulfillment: intent.Fulfillment{
			Method:     intent.MethodAttended,
			Day:        "Mon",
			TimeWindow: "am",
		},
		CreatedAt: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
	}
}

// MemoryStore is a process-local Store. Failures can be injected per method.
type MemoryStore struct {
	mu      sync.Mutex
	current *intent.Intent
	errMsg  *string

	SaveErr  error
	LoadErr  error
	ClearErr error
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(_ context.Context, in intent.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := in
	m.current = &cp
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (intent.Intent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return intent.Intent{}, false, m.LoadErr
	}
	if m.current == nil {
		return intent.Intent{}, false, nil
	}
	return *m.current, true, nil
}

func (m *MemoryStore) Clear(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	if m.current != nil && m.current.SessionReference == ref {
		m.current = nil
	}
	return nil
}

func (m *MemoryStore) RecordError(_ context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := message
	m.errMsg = &msg
	return nil
}

func (m *MemoryStore) TakeError(_ context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errMsg == nil {
		return "", false, nil
	}
	msg := *m.errMsg
	m.errMsg = nil
	return msg, true, nil
}

// PeekError returns the marker without consuming it.
func (m *MemoryStore) PeekError() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errMsg == nil {
		return "", false
	}
	return *m.errMsg, true
}

// Factory opens a store. reopen is called with the same t to simulate a full
// page reload; backends without a reload notion may return the same instance.
type Factory struct {
	Open   func(t *testing.T) intent.Store
	Reopen func(t *testing.T, prev intent.Store) intent.Store
}

// RunContract exercises the behaviour every backend must share.
func RunContract(t *testing.T, f Factory) {
	ctx := context.Background()
	reopen := f.Reopen
	if reopen == nil {
		reopen = func(_ *testing.T, prev intent.Store) intent.Store { return prev }
	}

	t.Run("empty slot", func(t *testing.T) {
		s := f.Open(t)
		_, ok, err := s.Load(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.TakeError(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("round trip survives reload", func(t *testing.T) {
		s := f.Open(t)
		want := Sample()
		require.NoError(t, s.Save(ctx, want))

		s = reopen(t, s)
		got, ok, err := s.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("save overwrites previous attempt", func(t *testing.T) {
		s := f.Open(t)
		first := Sample()
		second := Sample()
		second.SessionReference = "r2"
		second.ItemID = "I2"
		require.NoError(t, s.Save(ctx, first))
		require.NoError(t, s.Save(ctx, second))

		got, ok, err := s.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, second, got)
	})

	t.Run("clear ignores stale reference", func(t *testing.T) {
		s := f.Open(t)
		want := Sample()
		require.NoError(t, s.Save(ctx, want))
		require.NoError(t, s.Clear(ctx, "someone-else"))

		got, ok, err := s.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)

		require.NoError(t, s.Clear(ctx, want.SessionReference))
		s = reopen(t, s)
		_, ok, err = s.Load(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("error marker is read once", func(t *testing.T) {
		s := f.Open(t)
		require.NoError(t, s.RecordError(ctx, "reservation failed"))

		s = reopen(t, s)
		msg, ok, err := s.TakeError(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "reservation failed", msg)

		s = reopen(t, s)
		_, ok, err = s.TakeError(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// ErrInjected is the failure MemoryStore tests inject.
var ErrInjected = errors.New("injected store failure")
