package dataptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.messages = append(l.messages, msg)
}

func TestAllocateIsNotEmpty(t *testing.T) {
	d := Allocate[int]()
	assert.False(t, d.Empty())
	assert.Equal(t, 0, *d.Get())
}

func TestWrapOwnedCarriesValue(t *testing.T) {
	d := WrapOwned("hello")
	require.False(t, d.Empty())
	assert.Equal(t, "hello", *d.Get())
}

func TestEmptyDataPtrIsEmpty(t *testing.T) {
	var d DataPtr[int]
	assert.True(t, d.Empty())
}

func TestFreezeProducesEquivalentConstDataPtr(t *testing.T) {
	d := WrapOwned(42)
	c := d.Freeze()
	require.False(t, c.Empty())
	assert.Equal(t, 42, *c.Get())
}

func TestFreezeIsImmutableAfterSubsequentPublish(t *testing.T) {
	d1 := WrapOwned(1)
	snapshot := d1.Freeze()

	d2 := WrapOwned(2)
	_ = d2.Freeze()

	// The earlier snapshot must not be affected by a later, unrelated publish.
	assert.Equal(t, 1, *snapshot.Get())
}

func TestGetOnEmptyDataPtrAbortsAndLogs(t *testing.T) {
	rec := &recordingLogger{}
	orig := abortLogger
	SetAbortLogger(rec)
	defer SetAbortLogger(orig)

	var d DataPtr[int]
	assert.PanicsWithValue(t, "dataptr: dereferenced an empty DataPtr", func() {
		d.Get()
	})
	require.Len(t, rec.messages, 1)
	assert.Equal(t, "DataPtr is empty", rec.messages[0])
}

func TestGetOnEmptyConstDataPtrAbortsAndLogs(t *testing.T) {
	rec := &recordingLogger{}
	orig := abortLogger
	SetAbortLogger(rec)
	defer SetAbortLogger(orig)

	var c ConstDataPtr[string]
	assert.PanicsWithValue(t, "dataptr: dereferenced an empty ConstDataPtr", func() {
		c.Get()
	})
	require.Len(t, rec.messages, 1)
	assert.Equal(t, "ConstDataPtr is empty", rec.messages[0])
}
