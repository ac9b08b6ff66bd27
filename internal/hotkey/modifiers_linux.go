package hotkey

import "golang.design/x/hotkey"

var defaultModifiers = []string{"ctrl", "shift"}

// X11 maps Alt to Mod1 and the Super key to Mod4 on common layouts
var modifiers = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
	"alt":     hotkey.Mod1,
	"super":   hotkey.Mod4,
	"cmd":     hotkey.Mod4,
}
