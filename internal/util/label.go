// Package util holds terminal text helpers shared by the UI and the CLI.
package util

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks a truncated column.
const Ellipsis = "..."

// Fit pads str with spaces to width display cells, or truncates it and ends
// it with tail. Wide runes such as CJK or emoji count as two cells.
func Fit(str string, width int, tail string) string {
	w := runewidth.StringWidth(str)
	if w > width {
		str = runewidth.Truncate(str, width, tail)
		w = runewidth.StringWidth(str)
	}
	if w >= width {
		return str
	}
	return str + strings.Repeat(" ", width-w)
}

// PadRight fits str to width, truncating with Ellipsis.
func PadRight(str string, width int) string {
	return Fit(str, width, Ellipsis)
}

// ChannelLabel renders a sidebar entry of width cells. Group channels get a
// "#" prefix. The unread counter is never truncated; the name gives way first.
func ChannelLabel(name string, group bool, unread, width int) string {
	if group {
		name = "#" + name
	}
	var suffix string
	if unread > 0 {
		suffix = fmt.Sprintf(" (%d)", unread)
	}
	room := width - runewidth.StringWidth(suffix)
	if room <= runewidth.StringWidth(Ellipsis) {
		return PadRight(name+suffix, width)
	}
	return PadRight(runewidth.Truncate(name, room, Ellipsis)+suffix, width)
}
