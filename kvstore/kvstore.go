// Package kvstore defines the persistent key-value store contract modules
// use for configuration-like state, and ships an in-memory reference
// implementation to exercise it in tests. A real on-disk, log-structured
// implementation is an external collaborator: this package only commits
// to the interface, per the runtime's scope (the persistent store itself,
// and the concrete byte codec backing it, are deliberately out of scope
// as shipped products).
package kvstore

import (
	"sync"

	"github.com/fleetsys/fleet/result"
)

// Store is the per-primitive-type key-value contract every module-facing
// generated accessor is built on. Round-trip equality (Set then Get
// returns exactly what was set) is required of every implementation.
type Store interface {
	// Open prepares the store backed by path. If syncOnWrite is true,
	// every Set call durably flushes before returning.
	Open(path string, syncOnWrite bool) result.Result[struct{}]

	GetInt8(key string) result.Result[int8]
	SetInt8(key string, value int8) result.Result[struct{}]
	GetInt16(key string) result.Result[int16]
	SetInt16(key string, value int16) result.Result[struct{}]
	GetInt32(key string) result.Result[int32]
	SetInt32(key string, value int32) result.Result[struct{}]
	GetInt64(key string) result.Result[int64]
	SetInt64(key string, value int64) result.Result[struct{}]

	GetUint8(key string) result.Result[uint8]
	SetUint8(key string, value uint8) result.Result[struct{}]
	GetUint16(key string) result.Result[uint16]
	SetUint16(key string, value uint16) result.Result[struct{}]
	GetUint32(key string) result.Result[uint32]
	SetUint32(key string, value uint32) result.Result[struct{}]
	GetUint64(key string) result.Result[uint64]
	SetUint64(key string, value uint64) result.Result[struct{}]

	GetBool(key string) result.Result[bool]
	SetBool(key string, value bool) result.Result[struct{}]

	GetFloat32(key string) result.Result[float32]
	SetFloat32(key string, value float32) result.Result[struct{}]
	GetFloat64(key string) result.Result[float64]
	SetFloat64(key string, value float64) result.Result[struct{}]

	GetString(key string) result.Result[string]
	SetString(key string, value string) result.Result[struct{}]

	// GetBytes and SetBytes back every user-declared aggregate type: the
	// generated accessor for an aggregate marshals through codec.
	// Transformer and stores the resulting bytes under key.
	GetBytes(key string) result.Result[[]byte]
	SetBytes(key string, value []byte) result.Result[struct{}]
}

// MemStore is an in-memory Store, useful as a test double and as the
// default backend for examples that do not need real persistence.
type MemStore struct {
	mu     sync.RWMutex
	path   string
	opened bool
	sync   bool
	values map[string]any
}

// NewMemStore returns an unopened MemStore.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]any)}
}

func (m *MemStore) Open(path string, syncOnWrite bool) result.Result[struct{}] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
	m.sync = syncOnWrite
	m.opened = true
	return result.Ok(struct{}{})
}

func get[T any](m *MemStore, key string) result.Result[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.opened {
		return result.Err[T](result.NewError(result.NotOk, "store not opened"))
	}
	raw, ok := m.values[key]
	if !ok {
		return result.Err[T](result.NewError(result.NotOk, "key not found: "+key))
	}
	v, ok := raw.(T)
	if !ok {
		return result.Err[T](result.NewError(result.NotOk, "type mismatch for key: "+key))
	}
	return result.Ok(v)
}

func set[T any](m *MemStore, key string, value T) result.Result[struct{}] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return result.Err[struct{}](result.NewError(result.NotOk, "store not opened"))
	}
	m.values[key] = value
	return result.Ok(struct{}{})
}

func (m *MemStore) GetInt8(key string) result.Result[int8]                { return get[int8](m, key) }
func (m *MemStore) SetInt8(key string, v int8) result.Result[struct{}]    { return set(m, key, v) }
func (m *MemStore) GetInt16(key string) result.Result[int16]              { return get[int16](m, key) }
func (m *MemStore) SetInt16(key string, v int16) result.Result[struct{}]  { return set(m, key, v) }
func (m *MemStore) GetInt32(key string) result.Result[int32]              { return get[int32](m, key) }
func (m *MemStore) SetInt32(key string, v int32) result.Result[struct{}]  { return set(m, key, v) }
func (m *MemStore) GetInt64(key string) result.Result[int64]              { return get[int64](m, key) }
func (m *MemStore) SetInt64(key string, v int64) result.Result[struct{}]  { return set(m, key, v) }

func (m *MemStore) GetUint8(key string) result.Result[uint8]               { return get[uint8](m, key) }
func (m *MemStore) SetUint8(key string, v uint8) result.Result[struct{}]   { return set(m, key, v) }
func (m *MemStore) GetUint16(key string) result.Result[uint16]             { return get[uint16](m, key) }
func (m *MemStore) SetUint16(key string, v uint16) result.Result[struct{}] { return set(m, key, v) }
func (m *MemStore) GetUint32(key string) result.Result[uint32]             { return get[uint32](m, key) }
func (m *MemStore) SetUint32(key string, v uint32) result.Result[struct{}] { return set(m, key, v) }
func (m *MemStore) GetUint64(key string) result.Result[uint64]             { return get[uint64](m, key) }
func (m *MemStore) SetUint64(key string, v uint64) result.Result[struct{}] { return set(m, key, v) }

func (m *MemStore) GetBool(key string) result.Result[bool]             { return get[bool](m, key) }
func (m *MemStore) SetBool(key string, v bool) result.Result[struct{}] { return set(m, key, v) }

func (m *MemStore) GetFloat32(key string) result.Result[float32]             { return get[float32](m, key) }
func (m *MemStore) SetFloat32(key string, v float32) result.Result[struct{}] { return set(m, key, v) }
func (m *MemStore) GetFloat64(key string) result.Result[float64]             { return get[float64](m, key) }
func (m *MemStore) SetFloat64(key string, v float64) result.Result[struct{}] { return set(m, key, v) }

func (m *MemStore) GetString(key string) result.Result[string]             { return get[string](m, key) }
func (m *MemStore) SetString(key string, v string) result.Result[struct{}] { return set(m, key, v) }

func (m *MemStore) GetBytes(key string) result.Result[[]byte]             { return get[[]byte](m, key) }
func (m *MemStore) SetBytes(key string, v []byte) result.Result[struct{}] { return set(m, key, v) }
