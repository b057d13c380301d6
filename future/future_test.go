package future

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsys/fleet/result"
)

func TestReadyFutureIsImmediatelyReady(t *testing.T) {
	f := Ready(7)
	assert.True(t, f.IsReady())
	res := f.GetResult()
	require.True(t, res.HasValue())
	assert.Equal(t, 7, res.Value())
}

func TestReadyErrFutureCarriesError(t *testing.T) {
	f := ReadyErr[int](result.NewError(result.NotOk, "denied"))
	res := f.GetResult()
	assert.False(t, res.HasValue())
	assert.Equal(t, "denied", res.Error().Text)
}

func TestPromiseSetValueUnblocksFuture(t *testing.T) {
	p, f := New[string]()

	assert.False(t, f.IsReady())

	done := make(chan struct{})
	go func() {
		defer close(done)
		res := f.GetResult()
		assert.True(t, res.HasValue())
		assert.Equal(t, "hello", res.Value())
	}()

	p.SetValue("hello")
	<-done
}

func TestPromiseSetErrorUnblocksFuture(t *testing.T) {
	p, f := New[int]()
	p.SetError(result.NewError(result.NotOk, "failed"))

	res := f.GetResult()
	assert.False(t, res.HasValue())
	assert.Equal(t, "failed", res.Error().Text)
}

func TestSecondCompletionIsIgnored(t *testing.T) {
	p, f := New[int]()
	p.SetValue(1)
	p.SetValue(2) // swap-guarded, must be a no-op

	res := f.GetResult()
	assert.Equal(t, 1, res.Value())
}

func TestGetResultMemoizesAfterFirstRead(t *testing.T) {
	p, f := New[int]()
	p.SetValue(5)

	first := f.GetResult()
	second := f.GetResult()
	assert.Equal(t, first.Value(), second.Value())
}

func TestDroppedPromiseSurfacesError(t *testing.T) {
	var f *Future[int]
	func() {
		_, fut := New[int]()
		f = fut
		// p goes out of scope here without SetValue/SetError.
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if f.IsReady() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.True(t, f.IsReady(), "finalizer should have surfaced a dropped-promise error")
	res := f.GetResult()
	assert.False(t, res.HasValue())
	assert.Equal(t, result.NotOk, res.Error().Code)
}
