package hotkey

import (
	"fmt"
	"slices"
	"strings"

	"golang.design/x/hotkey"
)

// Binding is a configured key combination such as cmd+shift+V
type Binding struct {
	Modifiers []string `mapstructure:"modifiers" yaml:"modifiers"`
	Key       string   `mapstructure:"key" yaml:"key"`
}

// DefaultBinding is cmd+shift+V on macOS and ctrl+shift+V elsewhere
func DefaultBinding() Binding {
	return Binding{Modifiers: slices.Clone(defaultModifiers), Key: "V"}
}

// String renders the binding as "mod+mod+KEY"
func (b Binding) String() string {
	parts := make([]string, 0, len(b.Modifiers)+1)
	for _, m := range b.Modifiers {
		parts = append(parts, strings.ToLower(strings.TrimSpace(m)))
	}
	return strings.Join(append(parts, strings.ToUpper(strings.TrimSpace(b.Key))), "+")
}

// Equal reports whether both bindings resolve to the same combination
func (b Binding) Equal(other Binding) bool {
	return b.String() == other.String()
}

// Validate checks that the binding can be registered on this platform
func (b Binding) Validate() error {
	_, _, err := b.resolve()
	return err
}

func (b Binding) resolve() ([]hotkey.Modifier, hotkey.Key, error) {
	if len(b.Modifiers) == 0 {
		return nil, 0, fmt.Errorf("hotkey %q: at least one modifier is required", b.String())
	}

	var mods []hotkey.Modifier
	for _, name := range b.Modifiers {
		mod, ok := modifiers[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, 0, fmt.Errorf("hotkey %q: unknown modifier %q", b.String(), name)
		}
		if !slices.Contains(mods, mod) {
			mods = append(mods, mod)
		}
	}

	key, err := parseKey(b.Key)
	if err != nil {
		return nil, 0, fmt.Errorf("hotkey %q: %w", b.String(), err)
	}
	return mods, key, nil
}

var letterKeys = [...]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

var digitKeys = [...]hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

func parseKey(name string) (hotkey.Key, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	switch {
	case name == "SPACE":
		return hotkey.KeySpace, nil
	case len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z':
		return letterKeys[name[0]-'A'], nil
	case len(name) == 1 && name[0] >= '0' && name[0] <= '9':
		return digitKeys[name[0]-'0'], nil
	case name == "":
		return 0, fmt.Errorf("key is required")
	default:
		return 0, fmt.Errorf("unsupported key %q", name)
	}
}
