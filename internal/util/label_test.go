package util

import (
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		tail     string
		expected string
	}{
		{"pads short", "abc", 6, Ellipsis, "abc   "},
		{"exact width", "hello", 5, Ellipsis, "hello"},
		{"truncates with tail", "hello world", 8, "..", "hello .."},
		{"custom tail", "hello world", 6, "~", "hello~"},
		{"cjk counts two cells", "王小明", 5, Ellipsis, "王..."},
		{"cjk padded", "王小明", 8, Ellipsis, "王小明  "},
		{"emoji padded", "🐱cat", 7, Ellipsis, "🐱cat  "},
		{"zero width", "hello", 0, Ellipsis, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Fit(tt.str, tt.width, tt.tail))
		})
	}
}

func TestChannelLabel(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		group    bool
		unread   int
		width    int
		expected string
	}{
		{"user channel", "alice", false, 0, 10, "alice     "},
		{"group channel", "demo", true, 0, 10, "#demo     "},
		{"unread counter", "bob", false, 3, 10, "bob (3)   "},
		{"long name keeps counter", "bartholomew", false, 12, 10, "ba... (12)"},
		{"long group name", "general-chat", true, 0, 10, "#genera..."},
		{"cjk name keeps counter", "王小明先生", false, 2, 10, "王... (2) "},
		{"no room for the name", "bob", false, 5, 3, "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChannelLabel(tt.channel, tt.group, tt.unread, tt.width)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.width, runewidth.StringWidth(got))
		})
	}
}
