package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

// Theme defines the color palette of the console. All colors use ANSI
// 256-color codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	StatusIdle  lipgloss.Color
	StatusBusy  lipgloss.Color
	StatusError lipgloss.Color

	Connected    lipgloss.Color
	Connecting   lipgloss.Color
	Disconnected lipgloss.Color

	HeaderForeground lipgloss.Color
	HeaderBackground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	GridMarks        lipgloss.Color

	NoticeForeground lipgloss.Color
	ErrorForeground  lipgloss.Color
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),

	SelectedBackground: lipgloss.Color("24"),
	SelectedForeground: lipgloss.Color("231"),

	StatusIdle:  lipgloss.Color("35"),
	StatusBusy:  lipgloss.Color("214"),
	StatusError: lipgloss.Color("196"),

	Connected:    lipgloss.Color("42"),
	Connecting:   lipgloss.Color("220"),
	Disconnected: lipgloss.Color("160"),

	HeaderForeground: lipgloss.Color("231"),
	HeaderBackground: lipgloss.Color("236"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("245"),
	GridMarks:        lipgloss.Color("237"),

	NoticeForeground: lipgloss.Color("81"),
	ErrorForeground:  lipgloss.Color("203"),
}

// StatusColor returns the color for an agent status.
func (theme Theme) StatusColor(status fleet.Status) lipgloss.Color {
	switch status {
	case fleet.StatusIdle:
		return theme.StatusIdle
	case fleet.StatusBusy:
		return theme.StatusBusy
	case fleet.StatusError:
		return theme.StatusError
	default:
		return theme.FaintText
	}
}

// ConnColor returns the color for a connection state.
func (theme Theme) ConnColor(state fleet.ConnState) lipgloss.Color {
	switch state {
	case fleet.Connected:
		return theme.Connected
	case fleet.Connecting:
		return theme.Connecting
	default:
		return theme.Disconnected
	}
}

func (theme Theme) border() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor)
}
