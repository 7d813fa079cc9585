package main

import "github.com/charmbracelet/lipgloss"

// Console styles for command output.
var (
	headline = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimmed   = lipgloss.NewStyle().Faint(true)
	okMark   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	badMark  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)
