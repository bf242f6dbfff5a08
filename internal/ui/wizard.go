package ui

import (
	"fmt"
	"strings"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/validation"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TokenFormResult holds the answers collected by the token wizard.
type TokenFormResult struct {
	Form      validation.Form
	Network   string
	Cancelled bool
}

type wizardStep int

const (
	stepName wizardStep = iota
	stepSymbol
	stepSupply
	stepDecimals
	stepNetwork
	stepConfirm
	stepDone
)

// wizardField is one text step with its live check.
type wizardField struct {
	label string
	hint  string
	check func(string) string
}

var wizardFields = map[wizardStep]wizardField{
	stepName:     {"Token name", "3-50 letters, numbers or spaces", validation.Name},
	stepSymbol:   {"Token symbol", "2-5 of A-Z, 0-9 or $", validation.Symbol},
	stepSupply:   {"Initial supply", "whole tokens, before decimals", validation.Supply},
	stepDecimals: {"Decimals", "0-18, usually 18", validation.Decimals},
}

type wizardModel struct {
	step     wizardStep
	values   map[wizardStep]string
	errMsg   string
	networks []string
	cursor   int
	result   TokenFormResult
}

func newTokenWizard(initial validation.Form, networks []string, defaultNetwork string) wizardModel {
	m := wizardModel{
		step: stepName,
		values: map[wizardStep]string{
			stepName:     initial.Name,
			stepSymbol:   initial.Symbol,
			stepSupply:   initial.Supply,
			stepDecimals: initial.Decimals,
		},
		networks: networks,
	}
	if m.values[stepDecimals] == "" {
		m.values[stepDecimals] = "18"
	}
	for i, n := range networks {
		if n == defaultNetwork {
			m.cursor = i
		}
	}
	return m
}

func (m wizardModel) Init() tea.Cmd { return nil }

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	field, isText := wizardFields[m.step]

	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.result.Cancelled = true
		return m, tea.Quit

	case tea.KeyShiftTab:
		if m.step > stepName {
			m.step--
			m.errMsg = ""
		}

	case tea.KeyUp:
		m.moveCursor(-1)

	case tea.KeyDown:
		m.moveCursor(1)

	case tea.KeyEnter:
		return m.advance(field, isText)

	case tea.KeyBackspace:
		if isText {
			v := []rune(m.values[m.step])
			if len(v) > 0 {
				m.values[m.step] = string(v[:len(v)-1])
			}
			m.errMsg = field.check(m.values[m.step])
		}

	case tea.KeyRunes, tea.KeySpace:
		switch {
		case isText:
			m.values[m.step] += string(key.Runes)
			m.errMsg = field.check(m.values[m.step])
		case key.String() == "k":
			m.moveCursor(-1)
		case key.String() == "j":
			m.moveCursor(1)
		}
	}
	return m, nil
}

func (m *wizardModel) moveCursor(delta int) {
	if m.step != stepNetwork {
		return
	}
	if c := m.cursor + delta; c >= 0 && c < len(m.networks) {
		m.cursor = c
	}
}

// advance leaves the current step once its input is valid.
func (m wizardModel) advance(field wizardField, isText bool) (tea.Model, tea.Cmd) {
	if isText {
		if msg := field.check(m.values[m.step]); msg != "" {
			m.errMsg = msg
			return m, nil
		}
	}
	// supply × 10^decimals is only checkable once both are known
	if m.step == stepDecimals {
		if msg := m.form().Validate()[validation.FieldSupply]; msg != "" {
			m.errMsg = msg
			return m, nil
		}
	}
	m.errMsg = ""
	m.step++
	if m.step == stepDone {
		m.result.Form = m.form()
		if len(m.networks) > 0 {
			m.result.Network = m.networks[m.cursor]
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m wizardModel) form() validation.Form {
	return validation.Form{
		Name:     strings.TrimSpace(m.values[stepName]),
		Symbol:   strings.TrimSpace(m.values[stepSymbol]),
		Supply:   strings.TrimSpace(m.values[stepSupply]),
		Decimals: strings.TrimSpace(m.values[stepDecimals]),
	}
}

func (m wizardModel) View() string {
	var s string

	switch m.step {
	case stepName, stepSymbol, stepSupply, stepDecimals:
		f := wizardFields[m.step]
		s = StyleTitle.Render(fmt.Sprintf("Create token · step %d/6", int(m.step)+1)) + "\n\n"
		s += StyleValue.Render(f.label) + "  " + StyleMeta.Render(f.hint) + "\n"
		s += "> " + StyleAddress.Render(m.values[m.step]) + "█\n"
		if m.errMsg != "" {
			s += Err(m.errMsg) + "\n"
		}
		s += "\n" + StyleMeta.Render("Enter next · shift+tab back · esc cancel")
	case stepNetwork:
		s = renderMenu("Deploy to network:", m.networks, m.cursor)
	case stepConfirm:
		f := m.form()
		net := ""
		if len(m.networks) > 0 {
			net = m.networks[m.cursor]
		}
		s = KeyValueBlock("Review", [][2]string{
			{"Name", f.Name},
			{"Symbol", f.Symbol},
			{"Supply", f.Supply},
			{"Decimals", f.Decimals},
			{"Network", net},
		})
		s += "\n" + StyleMeta.Render("Enter deploy · shift+tab back · esc cancel")
	case stepDone:
		s = Success("Ready to deploy") + "\n"
	}

	return StyleBorder.Render(s) + "\n"
}

func renderMenu(title string, items []string, cursor int) string {
	s := StyleTitle.Render(title) + "\n\n"
	for i, item := range items {
		icon := "  "
		style := lipgloss.NewStyle().Foreground(ColorValue)
		if i == cursor {
			icon = "▸ "
			style = StyleSelected
		}
		s += icon + style.Render(item) + "\n"
	}
	s += "\n" + StyleMeta.Render("↑/↓ navigate · Enter select · shift+tab back · esc cancel")
	return s
}

// RunTokenWizard collects token parameters interactively, validating each
// field as it is typed. Fields already set in initial are prefilled.
func RunTokenWizard(initial validation.Form, networks []string, defaultNetwork string) (*TokenFormResult, error) {
	m := newTokenWizard(initial, networks, defaultNetwork)
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("wizard error: %w", err)
	}
	result := final.(wizardModel).result
	return &result, nil
}
