package style

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorCyan      = lipgloss.Color("212")
	colorPurple    = lipgloss.Color("99")
	colorGreen     = lipgloss.Color("42")
	colorRed       = lipgloss.Color("196")
)

// --- General Purpose Styles ---
var (
	ErrorStyle  = lipgloss.NewStyle().Foreground(colorRed)
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	HelpStyle   = lipgloss.NewStyle().Faint(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	DocStyle    = lipgloss.NewStyle().Margin(1, 2)
)

// --- Chat Styles ---
var (
	BaseStyle          = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray)
	HighlightFontStyle = lipgloss.NewStyle().Foreground(colorCyan)
	CursorStyle        = lipgloss.NewStyle().Foreground(colorCyan).SetString("> ")
	NoCursorStyle      = lipgloss.NewStyle().SetString("  ")
	GroupChannelStyle  = lipgloss.NewStyle().Foreground(colorPurple)
	UserChannelStyle   = lipgloss.NewStyle().Foreground(colorLightGray)
	SenderStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	TimeStyle          = lipgloss.NewStyle().Foreground(colorDarkGray)
	OnlineStyle        = lipgloss.NewStyle().Foreground(colorGreen)
	OfflineStyle       = lipgloss.NewStyle().Foreground(colorDarkGray)
)

// --- Common Components ---

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}
