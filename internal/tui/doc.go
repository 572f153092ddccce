// Package tui provides terminal user interface components for forage-preview.
//
// This package uses the Bubble Tea framework to show bootstrap progress for
// the up command.
//
// # Progress View
//
// The view subscribes to bootstrap events and runs the bootstrap itself:
//
//	ch, cancel := bus.Subscribe(64)
//	defer cancel()
//	outcome, err := tui.RunProgress(ch, func() (*tui.Outcome, error) {
//	    // run the bootstrap, locally or against a server
//	})
//
// Each pipeline step is a row with a spinner while running, then a check
// mark, a warning glyph for soft failures (install or dev server retries
// exhausted) or a cross for the fatal step. FormatEvent renders the same
// events as plain lines when no terminal is attached.
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
