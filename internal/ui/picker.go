package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrNothingToPick is returned when a picker is opened with no items.
var ErrNothingToPick = errors.New("no items to pick from")

// PickerItem is one entry shown in the interactive picker.
type PickerItem struct {
	Label    string // primary text (e.g. token symbol)
	SubLabel string // secondary text shown dimmed (e.g. balance, address)
	Value    string // value returned on selection (e.g. contract address)
}

// pickerModel is the Bubble Tea model for the list picker. In multi mode
// space toggles items and enter confirms the set.
type pickerModel struct {
	title    string
	items    []PickerItem
	multi    bool
	cursor   int
	checked  map[int]bool
	selected []string
	quitting bool
}

func newPicker(title string, items []PickerItem, multi bool) pickerModel {
	return pickerModel{title: title, items: items, multi: multi, checked: map[int]bool{}}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ", "x":
		if m.multi {
			m.checked[m.cursor] = !m.checked[m.cursor]
		} else if len(m.items) > 0 {
			m.selected = []string{m.items[m.cursor].Value}
			return m, tea.Quit
		}
	case "a":
		if m.multi {
			all := len(m.checkedValues()) < len(m.items)
			for i := range m.items {
				m.checked[i] = all
			}
		}
	case "enter":
		if len(m.items) == 0 {
			return m, nil
		}
		if m.multi {
			m.selected = m.checkedValues()
		} else {
			m.selected = []string{m.items[m.cursor].Value}
		}
		return m, tea.Quit
	}
	return m, nil
}

// checkedValues returns checked values in list order.
func (m pickerModel) checkedValues() []string {
	var out []string
	for i, it := range m.items {
		if m.checked[i] {
			out = append(out, it.Value)
		}
	}
	return out
}

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(StyleTitle.Render("  "+m.title) + "\n\n")

	for i, item := range m.items {
		prefix := "    "
		if i == m.cursor {
			prefix = "  ▸ "
		}
		if m.multi {
			box := "[ ] "
			if m.checked[i] {
				box = "[x] "
			}
			prefix += box
		}

		line := prefix + StyleValue.Render(item.Label)
		if item.SubLabel != "" {
			line += "  " + StyleMeta.Render(item.SubLabel)
		}

		if i == m.cursor {
			sb.WriteString(StyleSelected.Render(line) + "\n")
		} else {
			sb.WriteString(line + "\n")
		}
	}

	sb.WriteString("\n")
	if m.multi {
		sb.WriteString(StyleMeta.Render(fmt.Sprintf("  %d selected   [ space ] toggle   [ a ] all   [ Enter ] confirm   [ q ] cancel",
			len(m.checkedValues()))) + "\n")
	} else {
		sb.WriteString(StyleMeta.Render("  [ ↑↓ / jk ] navigate   [ Enter ] select   [ q ] cancel") + "\n")
	}
	return sb.String()
}

func runPicker(m pickerModel) (pickerModel, error) {
	if len(m.items) == 0 {
		return m, ErrNothingToPick
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return m, fmt.Errorf("picker: %w", err)
	}
	return final.(pickerModel), nil
}

// PickItem runs an interactive list picker and returns the selected item's Value.
// Returns ("", nil) if the user cancels. Returns an error only on TUI failure.
func PickItem(title string, items []PickerItem) (string, error) {
	fm, err := runPicker(newPicker(title, items, false))
	if err != nil {
		return "", err
	}
	if fm.quitting || len(fm.selected) == 0 {
		return "", nil
	}
	return fm.selected[0], nil
}

// PickMany lets the user tick any number of items and returns their values
// in list order. A cancelled picker returns (nil, nil).
func PickMany(title string, items []PickerItem) ([]string, error) {
	fm, err := runPicker(newPicker(title, items, true))
	if err != nil {
		return nil, err
	}
	if fm.quitting {
		return nil, nil
	}
	return fm.selected, nil
}
