package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorMuted   = lipgloss.Color("#666666")
	colorSuccess = lipgloss.Color("#2ECC71")
	colorWarning = lipgloss.Color("#F39C12")
	colorError   = lipgloss.Color("#E74C3C")
	colorPrimary = lipgloss.Color("#6C63FF")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 2)
)

// scoreStyle 按健康分分档着色：>=80 绿，>=60 黄，其余红
func scoreStyle(score int) lipgloss.Style {
	c := colorError
	switch {
	case score >= 80:
		c = colorSuccess
	case score >= 60:
		c = colorWarning
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

func renderScore(score int) string {
	return scoreStyle(score).Render(fmt.Sprintf("%d", score))
}
