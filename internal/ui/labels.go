package ui

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/engine"
)

// menuLabelLength bounds the preview shown in a menu slot
const menuLabelLength = 48

func menuLabel(item clipboard.Item, now time.Time) string {
	preview := item.Preview()
	if utf8.RuneCountInString(preview) > menuLabelLength {
		preview = string([]rune(preview)[:menuLabelLength-1]) + "…"
	}
	if item.IsImage() && item.SourceApp != "" {
		preview = fmt.Sprintf("%s from %s", preview, item.SourceApp)
	}
	return fmt.Sprintf("%s  (%s ago)", preview, formatDuration(now.Sub(item.Timestamp)))
}

func statusTitle(status engine.Status) string {
	switch status {
	case engine.StatusWatching:
		return "Status: Watching ✓"
	case engine.StatusPaused:
		return "Status: Paused ⏸"
	case engine.StatusError:
		return "Status: Error ⚠"
	default:
		return "Status: " + status.String()
	}
}

func lastBackupTitle(last, now time.Time) string {
	if last.IsZero() {
		return "Last backup: Never"
	}
	return fmt.Sprintf("Last backup: %s ago", formatDuration(now.Sub(last)))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return plural(int(d.Seconds()), "second")
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 48*time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Hours()/24), "day")
	}
}

func plural(n int, unit string) string {
	if n < 0 {
		n = 0
	}
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %s", n, strings.TrimSuffix(unit, "s")+"s")
}
