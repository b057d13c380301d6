package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsys/fleet/result"
)

func TestCallInvokesRegisteredHandlerSynchronously(t *testing.T) {
	provider := NewProvider[int, int]("Double")
	require.NoError(t, provider.RegisterHandler(func(in int) result.Result[int] { return result.Ok(in * 2) }))

	consumer := NewConsumer(provider)
	fut := consumer.Call(21)

	require.True(t, fut.IsReady(), "an in-process call must already be ready by the time Call returns")
	res := fut.GetResult()
	require.True(t, res.HasValue())
	assert.Equal(t, 42, res.Value())
}

func TestCallPropagatesHandlerError(t *testing.T) {
	provider := NewProvider[int, int]("Fail")
	require.NoError(t, provider.RegisterHandler(func(in int) result.Result[int] {
		return result.Err[int](result.NewError(result.NotOk, "rejected"))
	}))

	consumer := NewConsumer(provider)
	res := consumer.Call(1).GetResult()

	assert.False(t, res.HasValue())
	assert.Equal(t, "rejected", res.Error().Text)
}

func TestInvokeWithoutHandlerReturnsDescriptiveError(t *testing.T) {
	provider := NewProvider[int, int]("Unregistered")

	res := provider.Invoke(1)
	assert.False(t, res.HasValue())
	assert.Equal(t, "No operation handler registered for Unregistered.", res.Error().Text)
}

func TestRegisterHandlerRejectsSecondRegistration(t *testing.T) {
	provider := NewProvider[int, int]("Swap")
	require.NoError(t, provider.RegisterHandler(func(in int) result.Result[int] { return result.Ok(1) }))

	err := provider.RegisterHandler(func(in int) result.Result[int] { return result.Ok(2) })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerAlreadyRegistered)

	res := provider.Invoke(0)
	require.True(t, res.HasValue())
	assert.Equal(t, 1, res.Value())
}
