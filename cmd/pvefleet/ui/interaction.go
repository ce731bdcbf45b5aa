package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var interaction struct {
	mu          sync.RWMutex
	initialized bool
	interactive bool
}

// ConfigureInteraction decides once whether prompts and animated output are
// allowed, and pins the lipgloss color profile accordingly. Forced-off wins
// over every auto-detection signal.
func ConfigureInteraction(noInteraction bool) {
	interactive := detectInteractive(noInteraction)

	interaction.mu.Lock()
	interaction.initialized = true
	interaction.interactive = interactive
	interaction.mu.Unlock()

	if interactive {
		lipgloss.SetColorProfile(termenv.ColorProfile())
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

// IsInteractive reports the decision, auto-configuring on first use.
func IsInteractive() bool {
	interaction.mu.RLock()
	initialized, interactive := interaction.initialized, interaction.interactive
	interaction.mu.RUnlock()
	if initialized {
		return interactive
	}

	ConfigureInteraction(false)

	interaction.mu.RLock()
	interactive = interaction.interactive
	interaction.mu.RUnlock()
	return interactive
}

func IsNoInteraction() bool {
	return !IsInteractive()
}

func detectInteractive(noInteraction bool) bool {
	if noInteraction {
		return false
	}
	if boolEnv("NO_INTERACTION") || boolEnv("CI") {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func boolEnv(key string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
