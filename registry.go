package cryo

import (
	"reflect"
	"sync"
)

// registry holds one EntityMapper per entity type - built once, immutable thereafter
type registry struct {
	mu      sync.Mutex
	mappers sync.Map // map[reflect.Type]any (EntityMapper[T])
}

var defaultRegistry = &registry{}

// Register registers the property tree for T with the process-wide registry
//
// fails if a mapper for T is already registered
func Register[T any](root *Property) (EntityMapper[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, exists := defaultRegistry.mappers.Load(rt); exists {
		return nil, metadataf("entity %v already registered", rt)
	}
	m, err := NewEntityMapper[T](root)
	if err != nil {
		return nil, err
	}
	defaultRegistry.mappers.Store(rt, m)
	log().Debugw("registered entity mapper", "entity", rt.String(), "columns", len(m.Columns()))
	return m, nil
}

// MapperFor returns the registered EntityMapper for T - building it from struct tags on first use
//
// options (see NewBuilder) are only used when the mapper is built
func MapperFor[T any](options ...any) (EntityMapper[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if m, ok := defaultRegistry.mappers.Load(rt); ok {
		return m.(EntityMapper[T]), nil
	}
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if m, ok := defaultRegistry.mappers.Load(rt); ok {
		return m.(EntityMapper[T]), nil
	}
	b, err := NewBuilder(options...)
	if err != nil {
		return nil, err
	}
	m, err := BuildMapper[T](b)
	if err != nil {
		return nil, err
	}
	defaultRegistry.mappers.Store(rt, m)
	log().Debugw("registered entity mapper", "entity", rt.String(), "columns", len(m.Columns()))
	return m, nil
}

// MustMapperFor is the same as MapperFor except that it panics on error
func MustMapperFor[T any](options ...any) EntityMapper[T] {
	m, err := MapperFor[T](options...)
	if err != nil {
		panic(err)
	}
	return m
}

// ResetRegistry clears all registered mappers (useful for testing)
func ResetRegistry() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.mappers.Range(func(key, _ any) bool {
		defaultRegistry.mappers.Delete(key)
		return true
	})
}
