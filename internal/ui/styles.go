package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme colors
var (
	PrimaryColor = lipgloss.Color("#5B9BD5")

	SuccessColor = lipgloss.Color("#2ECC71")
	WarningColor = lipgloss.Color("#F1C40F")
	ErrorColor   = lipgloss.Color("#E74C3C")
	InfoColor    = lipgloss.Color("#5B9BD5")

	TextColor    = lipgloss.Color("#FFFFFF")
	SubtextColor = lipgloss.Color("#B0B0B0")
	MutedColor   = lipgloss.Color("#6C6C6C")
	DimColor     = lipgloss.Color("#4A4A4A")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor).Bold(true)

	WhiteStyle = lipgloss.NewStyle().Foreground(TextColor)
	MutedStyle = lipgloss.NewStyle().Foreground(MutedColor)
	DimStyle   = lipgloss.NewStyle().Foreground(DimColor)

	SectionTitleStyle = lipgloss.NewStyle().Foreground(TextColor).Bold(true)
	BorderStyle       = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
	BulletStyle       = lipgloss.NewStyle().Foreground(PrimaryColor)
	KeyStyle          = lipgloss.NewStyle().Foreground(TextColor)
	ValueStyle        = lipgloss.NewStyle().Foreground(SubtextColor)
	HeaderCellStyle   = lipgloss.NewStyle().Foreground(PrimaryColor).Bold(true)
)

// Status icons
const (
	IconSuccess = "✓"
	IconWarning = "⚠"
	IconError   = "✗"
	IconInfo    = "ℹ"
	IconBullet  = "•"
)

// Box drawing characters
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
)

const (
	ProgressFull  = "█"
	ProgressEmpty = "░"
)

// DefaultWidth is the width of section frames.
const DefaultWidth = 60

// RenderSectionStart returns a styled section header
func RenderSectionStart(title string) string {
	dashCount := DefaultWidth - lipgloss.Width(title) - 4 // "┌─ " + title + " ─"
	if dashCount < 0 {
		dashCount = 0
	}

	prefix := BorderStyle.Render(BoxTopLeft + BoxHorizontal + " ")
	suffix := BorderStyle.Render(" " + BoxHorizontal + strings.Repeat(BoxHorizontal, dashCount) + BoxTopRight)
	return prefix + SectionTitleStyle.Render(title) + suffix
}

// RenderSectionEnd returns a styled section footer
func RenderSectionEnd() string {
	return BorderStyle.Render(BoxBottomLeft + strings.Repeat(BoxHorizontal, DefaultWidth) + BoxBottomRight)
}

// RenderStatus returns a styled status message
func RenderStatus(status, message string) string {
	icon, style := IconInfo, InfoStyle
	switch status {
	case "success":
		icon, style = IconSuccess, SuccessStyle
	case "warning":
		icon, style = IconWarning, WarningStyle
	case "error":
		icon, style = IconError, ErrorStyle
	}
	return "  " + style.Render(icon) + " " + WhiteStyle.Render(message)
}

// RenderKeyValue returns a styled key-value pair
func RenderKeyValue(key, value string) string {
	return "  " + BulletStyle.Render(IconBullet) + " " +
		KeyStyle.Render(key) + " " +
		MutedStyle.Render(":") + " " +
		ValueStyle.Render(value)
}

// RenderProgressBar returns a bar colored by how close percent is to 100.
func RenderProgressBar(percent float64, width int) string {
	if width <= 0 {
		width = 20
	}

	filled := int(percent / 100 * float64(width))
	filled = min(max(filled, 0), width)

	var barStyle lipgloss.Style
	switch {
	case percent >= 90:
		barStyle = ErrorStyle
	case percent >= 70:
		barStyle = WarningStyle
	default:
		barStyle = SuccessStyle
	}

	return barStyle.Render(strings.Repeat(ProgressFull, filled)) +
		DimStyle.Render(strings.Repeat(ProgressEmpty, width-filled))
}
