package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_RegistersDefault(t *testing.T) {
	s := NewStore()
	v, err := Lookup(s, "fiber.stack_size", 128*1024, "fiber stack size")
	require.NoError(t, err)
	assert.Equal(t, 128*1024, v.Get())
	assert.Equal(t, "fiber.stack_size", v.Name())
	assert.Equal(t, "fiber stack size", v.Description())
	assert.Equal(t, "int", v.TypeName())

	again, err := Lookup(s, "fiber.stack_size", 1, "ignored")
	require.NoError(t, err)
	assert.Same(t, v, again)
	assert.Equal(t, 128*1024, again.Get())
	assert.Same(t, v, Find[int](s, "fiber.stack_size"))
}

func TestLookup_TypeMismatch(t *testing.T) {
	s := NewStore()
	_, err := Lookup(s, "system.port", 8080, "")
	require.NoError(t, err)

	_, err = Lookup(s, "system.port", "8080", "")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Nil(t, Find[string](s, "system.port"))
}

func TestLookup_InvalidName(t *testing.T) {
	s := NewStore()
	for _, name := range []string{"", "Upper", "with space", "dash-name", "é"} {
		_, err := Lookup(s, name, 0, "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	assert.Panics(t, func() { MustLookup(s, "BAD", 0, "") })
}

// TestVar_Listeners verifies listeners see old and new values, only on an
// actual change, and stop after removal.
func TestVar_Listeners(t *testing.T) {
	s := NewStore()
	v := MustLookup(s, "a.b", 1, "")

	type change struct{ old, new int }
	var got []change
	key := v.AddListener(func(o, n int) { got = append(got, change{o, n}) })

	v.Set(2)
	v.Set(2)
	v.Set(3)
	v.RemoveListener(key)
	v.Set(4)

	assert.Equal(t, []change{{1, 2}, {2, 3}}, got)
	assert.Equal(t, 4, v.Get())

	v.AddListener(func(int, int) { t.Fatal("cleared listener called") })
	v.ClearListeners()
	v.Set(5)
}

func TestVar_StringRoundTrip(t *testing.T) {
	s := NewStore()
	v := MustLookup(s, "ports", []int{80}, "")
	require.NoError(t, v.FromString("[1, 2, 3]"))
	assert.Equal(t, []int{1, 2, 3}, v.Get())

	out, err := v.ToString()
	require.NoError(t, err)
	assert.Equal(t, "- 1\n- 2\n- 3\n", out)

	assert.Error(t, v.FromString("{not: a list}"))
	assert.Equal(t, []int{1, 2, 3}, v.Get())
}

func TestLoadYAML_NestedKeys(t *testing.T) {
	s := NewStore()
	size := MustLookup(s, "fiber.stack_size", 1, "")
	name := MustLookup(s, "scheduler.name", "", "")
	threads := MustLookup(s, "scheduler.threads", map[string]int{}, "")
	untouched := MustLookup(s, "other", true, "")

	require.NoError(t, s.LoadYAML([]byte(`
fiber:
  Stack_Size: 65536
scheduler:
  name: io
  threads:
    io: 4
    cpu: 2
unknown:
  key: 1
`)))

	assert.Equal(t, 65536, size.Get())
	assert.Equal(t, "io", name.Get())
	assert.Equal(t, map[string]int{"io": 4, "cpu": 2}, threads.Get())
	assert.True(t, untouched.Get())
}

func TestLoadYAML_Errors(t *testing.T) {
	s := NewStore()
	size := MustLookup(s, "fiber.stack_size", 1, "")
	name := MustLookup(s, "name", "", "")

	assert.Error(t, s.LoadYAML([]byte("fiber: [unclosed")))

	err := s.LoadYAML([]byte("fiber:\n  stack_size: lots\nname: ok\n"))
	assert.ErrorContains(t, err, "fiber.stack_size")
	assert.Equal(t, 1, size.Get())
	assert.Equal(t, "ok", name.Get())

	assert.NoError(t, s.LoadYAML(nil))
}

func TestLoadMap(t *testing.T) {
	s := NewStore()
	size := MustLookup(s, "fiber.stack_size", 1, "")
	require.NoError(t, s.LoadMap(map[string]any{
		"fiber": map[string]any{"stack_size": 4096},
	}))
	assert.Equal(t, 4096, size.Get())
}

func TestDumpYAML(t *testing.T) {
	s := NewStore()
	MustLookup(s, "b.value", 2, "")
	MustLookup(s, "a.value", "x", "")

	var names []string
	s.Visit(func(e Entry) { names = append(names, e.Name()) })
	assert.Equal(t, []string{"a.value", "b.value"}, names)

	out, err := s.DumpYAML()
	require.NoError(t, err)
	assert.Equal(t, "a.value: x\nb.value: 2\n", string(out))
	assert.True(t, strings.HasPrefix(string(out), "a.value"))
}
