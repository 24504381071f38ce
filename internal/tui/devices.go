// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"refmaster/internal/playback"
)

// DevicePickerModel lets the user choose an output device for playback.
type DevicePickerModel struct {
	devices       []playback.Device
	selectedIndex int
	chosen        bool
	viewport      viewport.Model
	ready         bool
}

// NewDevicePickerModel lists the output-capable entries of devices.
func NewDevicePickerModel(devices []playback.Device) DevicePickerModel {
	var outputs []playback.Device
	for _, d := range devices {
		if d.MaxOutputChannels > 0 {
			outputs = append(outputs, d)
		}
	}
	return DevicePickerModel{devices: outputs}
}

func (m DevicePickerModel) Init() tea.Cmd {
	return nil
}

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"))):
			return m, tea.Quit

		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}

		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			if len(m.devices) > 0 {
				m.chosen = true
				return m, tea.Quit
			}
		}
		m.viewport.SetContent(m.renderDevices())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m DevicePickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Output Devices")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Cancel")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No output devices found."
	}

	var sb strings.Builder
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s\n    Output channels: %d, Default sample rate: %.0f Hz\n",
			d.ID, d.Name, d.MaxOutputChannels, d.DefaultSampleRate)
		if i == m.selectedIndex {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Selected returns the chosen device, if the user confirmed one.
func (m DevicePickerModel) Selected() (playback.Device, bool) {
	if !m.chosen || len(m.devices) == 0 {
		return playback.Device{}, false
	}
	return m.devices[m.selectedIndex], true
}

// PickOutputDevice runs the picker and returns the chosen device ID, or
// playback.DefaultDevice if the user cancelled.
func PickOutputDevice(devices []playback.Device) (int, error) {
	p := tea.NewProgram(NewDevicePickerModel(devices), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return playback.DefaultDevice, err
	}
	if d, ok := final.(DevicePickerModel).Selected(); ok {
		return d.ID, nil
	}
	return playback.DefaultDevice, nil
}
