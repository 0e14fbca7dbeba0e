package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidName is returned for names outside [a-z0-9._].
	ErrInvalidName = errors.New("config: invalid name")

	// ErrTypeMismatch is returned by Lookup when a name is already registered
	// with a different type.
	ErrTypeMismatch = errors.New("config: type mismatch")
)

// Default is the process-wide store.
var Default = NewStore()

// Store holds registered variables by name.
type Store struct {
	vars map[string]Entry
	mu   sync.RWMutex
}

func NewStore() *Store {
	return &Store{vars: make(map[string]Entry)}
}

// ValidName reports whether name may be registered.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '.' && c != '_' {
			return false
		}
	}
	return true
}

// Lookup returns the variable registered as name, registering it with the
// default def if absent. If s is nil, Default is used.
func Lookup[T any](s *Store, name string, def T, description string) (*Var[T], error) {
	if s == nil {
		s = Default
	}
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.vars[name]; ok {
		if v, ok := e.(*Var[T]); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: %q is %s, not %T", ErrTypeMismatch, name, e.TypeName(), def)
	}

	v := newVar(name, def, description)
	s.vars[name] = v
	return v, nil
}

// MustLookup is like Lookup but panics on error, for package-level
// registration.
func MustLookup[T any](s *Store, name string, def T, description string) *Var[T] {
	v, err := Lookup(s, name, def, description)
	if err != nil {
		panic(err)
	}
	return v
}

// Find returns the variable registered as name, or nil if it is absent or of
// another type.
func Find[T any](s *Store, name string) *Var[T] {
	if s == nil {
		s = Default
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.vars[name].(*Var[T])
	return v
}

// Get returns the entry registered as name, or nil.
func (s *Store) Get(name string) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vars[name]
}

// Visit calls fn for every registered entry, in name order.
func (s *Store) Visit(fn func(Entry)) {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.vars))
	for _, e := range s.vars {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		fn(e)
	}
}

// LoadYAML applies a YAML document. Every node of the document, mappings
// included, is matched against the registered names, so a variable of a map
// or struct type receives its whole subtree. Unregistered paths are ignored.
// All matching entries are applied, the first error is returned.
func (s *Store) LoadYAML(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse: %w", err)
	}
	if doc.Kind == 0 {
		return nil
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return s.apply(flatten(doc.Content[0], "", nil))
	}
	return s.apply(flatten(&doc, "", nil))
}

// LoadFile reads path and applies it with LoadYAML.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.LoadYAML(data)
}

// LoadMap applies an already-decoded nested map, e.g. viper's AllSettings.
func (s *Store) LoadMap(m map[string]any) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return s.LoadYAML(data)
}

// DumpYAML renders every registered value as a flat YAML mapping.
func (s *Store) DumpYAML() ([]byte, error) {
	out := make(map[string]any)
	s.Visit(func(e Entry) { out[e.Name()] = e.value() })
	return yaml.Marshal(out)
}

type flatNode struct {
	node *yaml.Node
	name string
}

func flatten(node *yaml.Node, prefix string, out []flatNode) []flatNode {
	if prefix != "" {
		out = append(out, flatNode{name: prefix, node: node})
	}
	if node.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := strings.ToLower(node.Content[i].Value)
		if !ValidName(key) {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		out = flatten(node.Content[i+1], key, out)
	}
	return out
}

func (s *Store) apply(nodes []flatNode) error {
	var first error
	for _, n := range nodes {
		e := s.Get(n.name)
		if e == nil {
			continue
		}
		if err := e.decode(n.node); err != nil && first == nil {
			first = err
		}
	}
	return first
}
