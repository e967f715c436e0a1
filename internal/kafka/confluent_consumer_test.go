package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserDeletedHandler struct {
	mock.Mock
}

func (m *mockUserDeletedHandler) HandleUserDeleted(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func TestHandleUserDeleted(t *testing.T) {
	ctx := context.Background()

	t.Run("dispatches user id", func(t *testing.T) {
		h := &mockUserDeletedHandler{}
		h.On("HandleUserDeleted", ctx, "user-1").Return(nil).Once()

		require.NoError(t, handleUserDeleted(ctx, h, []byte(`{"user_id":"user-1","timestamp":1700000000}`)))
		h.AssertExpectations(t)
	})

	t.Run("handler error is returned", func(t *testing.T) {
		h := &mockUserDeletedHandler{}
		boom := errors.New("db down")
		h.On("HandleUserDeleted", ctx, "user-1").Return(boom).Once()

		assert.ErrorIs(t, handleUserDeleted(ctx, h, []byte(`{"user_id":"user-1"}`)), boom)
	})

	t.Run("malformed payloads never reach handler", func(t *testing.T) {
		h := &mockUserDeletedHandler{}

		assert.Error(t, handleUserDeleted(ctx, h, []byte(`not json`)))
		assert.ErrorIs(t, handleUserDeleted(ctx, h, []byte(`{"timestamp":1}`)), errMissingUserID)
		h.AssertNotCalled(t, "HandleUserDeleted", mock.Anything, mock.Anything)
	})
}
