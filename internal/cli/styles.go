// Copyright (c) 2025 Lawson Morris
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Centralized styling for all nova CLI commands.
//
// Color handling:
// - Colors are automatically disabled for non-TTY output (piped, redirected)
// - Respects the NO_COLOR environment variable (https://no-color.org/)
// - Supports FORCE_COLOR to override detection
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// init configures the lipgloss color profile based on terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// promptStyle is the input prompt
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // Cyan
			Bold(true)

	// novaStyle marks model output headers
	novaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")). // Purple
			Bold(true)

	// titleStyle is used for banners and section headers
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // Cyan
			Bold(true)

	// infoStyle is used for secondary information
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Light gray

	// commandStyle is used for command names and confirmed values
	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Green

	// successStyle is used for success messages
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	// warningStyle is used for warnings
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Amber

	// errorStyle is used for error messages
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// dimStyle is used for de-emphasized text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray
)
