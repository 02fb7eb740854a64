// Package ui provides terminal styling for flowctl output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)

	// CategoryStyle is used for section headers.
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle    = lipgloss.NewStyle().Foreground(ColorMuted).Width(labelWidth)
)

const labelWidth = 14

// Status icons. ASCII fallbacks are used when ShouldUseEmoji is false.
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconInfo = "ℹ"
)

const SeparatorLight = "──────────────────────────────────────────"

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderCategory renders a section header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

func RenderPassIcon() string { return PassStyle.Render(icon(IconPass, "ok")) }
func RenderWarnIcon() string { return WarnStyle.Render(icon(IconWarn, "!")) }
func RenderFailIcon() string { return FailStyle.Render(icon(IconFail, "x")) }
func RenderInfoIcon() string { return AccentStyle.Render(icon(IconInfo, "i")) }

func icon(glyph, fallback string) string {
	if ShouldUseEmoji() {
		return glyph
	}
	return fallback
}

// RenderField renders a "label  value" row with a fixed-width muted label.
func RenderField(label string, value any) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

// RenderFindings renders validator errors and warnings, one per line, each
// prefixed with its status icon. It returns "" when both are empty.
func RenderFindings(errs, warnings []string) string {
	var b strings.Builder
	for _, e := range errs {
		b.WriteString("  " + RenderFailIcon() + " " + e + "\n")
	}
	for _, w := range warnings {
		b.WriteString("  " + RenderWarnIcon() + " " + RenderWarn(w) + "\n")
	}
	return b.String()
}
