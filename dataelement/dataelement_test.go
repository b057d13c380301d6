package dataelement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsys/fleet/dataptr"
)

func TestSetThenGetReturnsLatestValue(t *testing.T) {
	provider, consumer := NewEndpoint[string]()

	assert.Equal(t, "", consumer.Get())

	provider.Set("hello")
	assert.Equal(t, "hello", consumer.Get())

	provider.Set("world")
	assert.Equal(t, "world", consumer.Get())
}

func TestGetAllocatedFailsBeforeFirstPublish(t *testing.T) {
	_, consumer := NewEndpoint[int]()

	res := consumer.GetAllocated()
	assert.False(t, res.HasValue())
	assert.Equal(t, "no sample", res.Error().Text)
}

func TestGetAllocatedSucceedsAfterPublish(t *testing.T) {
	provider, consumer := NewEndpoint[int]()
	provider.Set(42)

	res := consumer.GetAllocated()
	require.True(t, res.HasValue())
	assert.Equal(t, 42, *res.Value().Get())
}

func TestRegisteredHandlerFiresOnEveryActivePublish(t *testing.T) {
	provider, consumer := NewEndpoint[int]()

	var seen []int
	consumer.RegisterHandler("Listener", func(sample dataptr.ConstDataPtr[int]) {
		seen = append(seen, *sample.Get())
	})
	consumer.StartEventHandlerForModule("Listener")

	provider.Set(1)
	provider.Set(2)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestInactiveHandlerDoesNotFire(t *testing.T) {
	provider, consumer := NewEndpoint[int]()

	fired := false
	consumer.RegisterHandler("Listener", func(sample dataptr.ConstDataPtr[int]) {
		fired = true
	})
	// Never started: the subscriber record exists but is not active.

	provider.Set(1)
	assert.False(t, fired)
}

func TestStopEventHandlerForModuleDeactivatesExistingSubscribers(t *testing.T) {
	provider, consumer := NewEndpoint[int]()

	count := 0
	consumer.RegisterHandler("Listener", func(sample dataptr.ConstDataPtr[int]) {
		count++
	})
	consumer.StartEventHandlerForModule("Listener")
	provider.Set(1)
	require.Equal(t, 1, count)

	consumer.StopEventHandlerForModule("Listener")
	provider.Set(2)
	assert.Equal(t, 1, count, "handler must not fire once its owner is stopped")
}

func TestRegisterHandlerAfterActivationStartsActiveImmediately(t *testing.T) {
	provider, consumer := NewEndpoint[int]()

	consumer.StartEventHandlerForModule("Listener")

	fired := false
	consumer.RegisterHandler("Listener", func(sample dataptr.ConstDataPtr[int]) {
		fired = true
	})

	provider.Set(1)
	assert.True(t, fired, "a handler registered after its owner is already active should fire immediately")
}

func TestDeliverUpdatesConsumerCacheAndFansOut(t *testing.T) {
	_, consumer := NewEndpoint[string]()

	var received string
	consumer.RegisterHandler("Remote", func(sample dataptr.ConstDataPtr[string]) {
		received = *sample.Get()
	})
	consumer.StartEventHandlerForModule("Remote")

	consumer.Deliver(dataptr.WrapOwned("from-wire"))

	assert.Equal(t, "from-wire", received)
	assert.Equal(t, "from-wire", consumer.Get())
}

func TestSnapshotIsImmutableAfterSubsequentPublish(t *testing.T) {
	provider, consumer := NewEndpoint[int]()

	provider.Set(1)
	snapshot := consumer.GetAllocated().Value()

	provider.Set(2)

	assert.Equal(t, 1, *snapshot.Get(), "a snapshot taken before a later publish must be unaffected by it")
	assert.Equal(t, 2, consumer.Get())
}

func TestProviderCanActAsItsOwnActivatable(t *testing.T) {
	provider, consumer := NewEndpoint[int]()

	// Provider exposes the same activation protocol as Consumer, sharing
	// the underlying core, so activating via either side has the same
	// effect.
	var fired bool
	consumer.RegisterHandler("Owner", func(sample dataptr.ConstDataPtr[int]) { fired = true })
	provider.StartEventHandlerForModule("Owner")

	provider.Set(1)
	assert.True(t, fired)
}
