package hotkey

import "golang.design/x/hotkey"

var defaultModifiers = []string{"cmd", "shift"}

var modifiers = map[string]hotkey.Modifier{
	"cmd":     hotkey.ModCmd,
	"command": hotkey.ModCmd,
	"shift":   hotkey.ModShift,
	"option":  hotkey.ModOption,
	"alt":     hotkey.ModOption,
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
}
