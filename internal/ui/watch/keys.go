// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/jeranaias/sessionscope/internal/ui/components"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings of the watch view.
type KeyMap struct {
	Quit       key.Binding
	ToggleView key.Binding
	Up         key.Binding
	Down       key.Binding
	Copy       key.Binding
	Follow     key.Binding
	PlayPause  key.Binding
	SeekBack   key.Binding
	SeekFwd    key.Binding
	Restart    key.Binding
	Faster     key.Binding
	Slower     key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		ToggleView: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "events"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "down"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy"),
		),
		Follow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "follow"),
		),
		PlayPause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause"),
		),
		SeekBack: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "-10"),
		),
		SeekFwd: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "+10"),
		),
		Restart: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "restart"),
		),
		Faster: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "faster"),
		),
		Slower: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "slower"),
		),
	}
}

// shortcuts lists the hints for the status bar, most useful first.
func (k KeyMap) shortcuts(replay bool) []components.Shortcut {
	bindings := []key.Binding{k.Quit}
	if replay {
		bindings = append(bindings, k.PlayPause, k.SeekBack, k.SeekFwd, k.Faster)
	}
	bindings = append(bindings, k.ToggleView, k.Copy, k.Follow)

	out := make([]components.Shortcut, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		out = append(out, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return out
}
