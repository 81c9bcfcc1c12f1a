package restatestore

import (
	"testing"

	restate "github.com/restatedev/sdk-go"
	"github.com/restatedev/sdk-go/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent"
	"github.com/AnthonyGillesRudolfo/Item-Reservation-Checkout/internal/intent/intenttest"
)

func TestSaveStoresIntent(t *testing.T) {
	in := intenttest.Sample()
	mockCtx := mocks.NewMockContext(t)
	mockCtx.EXPECT().Key().Return("client-1")
	mockCtx.EXPECT().Set(intent.SlotPending, in)

	_, err := Save(restate.WithMockContext(mockCtx), in)
	assert.NoError(t, err)
}

func TestSaveRejectsIncompleteIntent(t *testing.T) {
	in := intenttest.Sample()
	in.Contact.Email = ""
	mockCtx := mocks.NewMockContext(t)

	_, err := Save(restate.WithMockContext(mockCtx), in)
	require.Error(t, err)
	assert.True(t, restate.IsTerminalError(err))
}

func TestLoad(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		mockCtx := mocks.NewMockContext(t)
		mockCtx.EXPECT().Get(intent.SlotPending, mock.Anything).Return(false, nil)

		slot, err := Load(restate.WithMockContext(mockCtx), restate.Void{})
		require.NoError(t, err)
		assert.Nil(t, slot.Intent)
	})

	t.Run("stored", func(t *testing.T) {
		mockCtx := mocks.NewMockContext(t)
		mockCtx.EXPECT().GetAndReturn(intent.SlotPending, intenttest.Sample())

		slot, err := Load(restate.WithMockContext(mockCtx), restate.Void{})
		require.NoError(t, err)
		require.NotNil(t, slot.Intent)
		assert.Equal(t, intenttest.Sample(), *slot.Intent)
	})
}

func TestClearOnlyRemovesMatchingReference(t *testing.T) {
	t.Run("stale reference", func(t *testing.T) {
		mockCtx := mocks.NewMockContext(t)
		mockCtx.EXPECT().GetAndReturn(intent.SlotPending, intenttest.Sample())

		_, err := Clear(restate.WithMockContext(mockCtx), "someone-else")
		assert.NoError(t, err)
	})

	t.Run("current reference", func(t *testing.T) {
		mockCtx := mocks.NewMockContext(t)
		mockCtx.EXPECT().GetAndReturn(intent.SlotPending, intenttest.Sample())
		mockCtx.EXPECT().Clear(intent.SlotPending)
		mockCtx.EXPECT().Key().Return("client-1")

		_, err := Clear(restate.WithMockContext(mockCtx), "r1")
		assert.NoError(t, err)
	})
}

func TestTakeErrorConsumesMarker(t *testing.T) {
	mockCtx := mocks.NewMockContext(t)
	mockCtx.EXPECT().GetAndReturn(intent.SlotError, "backend rejected")
	mockCtx.EXPECT().Clear(intent.SlotError)

	m, err := TakeError(restate.WithMockContext(mockCtx), restate.Void{})
	require.NoError(t, err)
	assert.Equal(t, Marker{Message: "backend rejected", Found: true}, m)
}

func TestRecordErrorSetsMarker(t *testing.T) {
	mockCtx := mocks.NewMockContext(t)
	mockCtx.EXPECT().Set(intent.SlotError, "backend rejected")

	_, err := RecordError(restate.WithMockContext(mockCtx), "backend rejected")
	assert.NoError(t, err)
}
