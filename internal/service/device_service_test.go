package service_test

import (
	"context"
	"testing"

	"github.com/quocanhngo/lighttalk/internal/apperror"
	"github.com/quocanhngo/lighttalk/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceService_RegisterDevice(t *testing.T) {
	f := newFixture(t, fixtureConfig{})
	ctx := context.Background()
	devices := service.NewDeviceService(f.store, service.WithClock(f.clock.Now))

	require.NoError(t, devices.RegisterDevice(ctx, 1, "token-a", "ios"))
	require.NoError(t, devices.RegisterDevice(ctx, 1, "token-b", ""))
	require.NoError(t, devices.RegisterDevice(ctx, 2, "token-a", "ios"))

	tokens, err := f.store.Devices.TokensByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"token-b"}, tokens)

	tokens, err = f.store.Devices.TokensByUserID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"token-a"}, tokens)

	assert.ErrorIs(t, devices.RegisterDevice(ctx, 1, "  ", "web"), apperror.InvalidInput)
	assert.ErrorIs(t, devices.RegisterDevice(ctx, 99, "token-c", "web"), apperror.UserNotFound)
}
