package config

import (
	"fmt"
	"reflect"
	"sync"

	"gopkg.in/yaml.v3"
)

// Entry is the type-erased view of a registered Var.
type Entry interface {
	Name() string
	Description() string
	TypeName() string
	// ToString renders the current value as YAML.
	ToString() (string, error)
	// FromString parses YAML into the value, notifying listeners on change.
	FromString(s string) error

	value() any
	decode(node *yaml.Node) error
}

// Listener is called with the previous and new value after a change.
type Listener[T any] func(oldValue, newValue T)

// Var is a named, typed configuration value. It is safe for concurrent use.
type Var[T any] struct {
	listeners   map[uint64]Listener[T]
	val         T
	name        string
	description string
	nextID      uint64
	mu          sync.RWMutex
}

func newVar[T any](name string, def T, description string) *Var[T] {
	return &Var[T]{
		name:        name,
		description: description,
		val:         def,
		listeners:   make(map[uint64]Listener[T]),
	}
}

func (v *Var[T]) Name() string        { return v.name }
func (v *Var[T]) Description() string { return v.description }
func (v *Var[T]) TypeName() string    { return fmt.Sprintf("%T", *new(T)) }

// Get returns the current value.
func (v *Var[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val
}

// Set replaces the value. Listeners run on the calling goroutine, outside
// the lock, and only if the value changed.
func (v *Var[T]) Set(val T) {
	v.mu.Lock()
	if reflect.DeepEqual(v.val, val) {
		v.mu.Unlock()
		return
	}
	old := v.val
	v.val = val
	listeners := make([]Listener[T], 0, len(v.listeners))
	for _, fn := range v.listeners {
		listeners = append(listeners, fn)
	}
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(old, val)
	}
}

// AddListener registers fn, returning a key for RemoveListener.
func (v *Var[T]) AddListener(fn Listener[T]) uint64 {
	if fn == nil {
		panic("config: nil listener")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextID++
	v.listeners[v.nextID] = fn
	return v.nextID
}

func (v *Var[T]) RemoveListener(key uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.listeners, key)
}

func (v *Var[T]) ClearListeners() {
	v.mu.Lock()
	defer v.mu.Unlock()
	clear(v.listeners)
}

func (v *Var[T]) ToString() (string, error) {
	b, err := yaml.Marshal(v.Get())
	if err != nil {
		return "", fmt.Errorf("config: %s: %w", v.name, err)
	}
	return string(b), nil
}

func (v *Var[T]) FromString(s string) error {
	var val T
	if err := yaml.Unmarshal([]byte(s), &val); err != nil {
		return fmt.Errorf("config: %s: %w", v.name, err)
	}
	v.Set(val)
	return nil
}

func (v *Var[T]) value() any { return v.Get() }

func (v *Var[T]) decode(node *yaml.Node) error {
	var val T
	if err := node.Decode(&val); err != nil {
		return fmt.Errorf("config: %s: %w", v.name, err)
	}
	v.Set(val)
	return nil
}
