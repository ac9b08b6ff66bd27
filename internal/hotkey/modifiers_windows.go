package hotkey

import "golang.design/x/hotkey"

var defaultModifiers = []string{"ctrl", "shift"}

var modifiers = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
	"alt":     hotkey.ModAlt,
	"win":     hotkey.ModWin,
	"cmd":     hotkey.ModWin,
}
