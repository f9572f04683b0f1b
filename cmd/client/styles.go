package main

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette; lipgloss drops colour when stdout is not a terminal.
var (
	red       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	green     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	cyan      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray      = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	lightGray = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)
