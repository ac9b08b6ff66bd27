package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBindingIsValid(t *testing.T) {
	b := DefaultBinding()
	require.NoError(t, b.Validate())
	assert.Equal(t, "V", b.Key)
	assert.Contains(t, b.Modifiers, "shift")
}

func TestBinding_String(t *testing.T) {
	b := Binding{Modifiers: []string{" Ctrl", "SHIFT"}, Key: "v"}
	assert.Equal(t, "ctrl+shift+V", b.String())
	assert.True(t, b.Equal(Binding{Modifiers: []string{"ctrl", "shift"}, Key: "V"}))
	assert.False(t, b.Equal(Binding{Modifiers: []string{"shift", "ctrl"}, Key: "V"}))
}

func TestBinding_Validate(t *testing.T) {
	tests := []struct {
		name    string
		binding Binding
		wantErr string
	}{
		{"letter", Binding{Modifiers: []string{"shift"}, Key: "k"}, ""},
		{"digit", Binding{Modifiers: []string{"ctrl"}, Key: "7"}, ""},
		{"space", Binding{Modifiers: []string{"ctrl", "shift"}, Key: "Space"}, ""},
		{"duplicate modifiers", Binding{Modifiers: []string{"shift", "Shift"}, Key: "A"}, ""},
		{"no modifiers", Binding{Key: "V"}, "at least one modifier"},
		{"unknown modifier", Binding{Modifiers: []string{"hyper"}, Key: "V"}, "unknown modifier"},
		{"missing key", Binding{Modifiers: []string{"shift"}}, "key is required"},
		{"unsupported key", Binding{Modifiers: []string{"shift"}, Key: "F13"}, "unsupported key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.binding.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestResolve_DeduplicatesModifiers(t *testing.T) {
	mods, _, err := Binding{Modifiers: []string{"shift", "shift", "ctrl"}, Key: "A"}.resolve()
	require.NoError(t, err)
	assert.Len(t, mods, 2)
}

func TestParseKey(t *testing.T) {
	a, err := parseKey("a")
	require.NoError(t, err)
	upper, err := parseKey("A")
	require.NoError(t, err)
	assert.Equal(t, a, upper)

	z, err := parseKey("z")
	require.NoError(t, err)
	assert.NotEqual(t, a, z)

	_, err = parseKey("ab")
	assert.Error(t, err)
}

func TestNew_RejectsInvalidBinding(t *testing.T) {
	_, err := New(Binding{Key: "V"})
	assert.Error(t, err)

	s, err := New(DefaultBinding())
	require.NoError(t, err)
	assert.Equal(t, DefaultBinding(), s.Binding())
	assert.NoError(t, s.Unregister())
}
