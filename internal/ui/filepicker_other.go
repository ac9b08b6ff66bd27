//go:build !darwin

package ui

import "log/slog"

// ShowFolderPicker has no native dialog outside macOS; set backup_location
// in the config file instead
func ShowFolderPicker(string) string {
	slog.Warn("folder picker is only available on macOS; set backup_location in the config file")
	return ""
}
