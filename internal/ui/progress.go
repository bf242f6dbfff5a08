package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/balance"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/rescue"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RescueRow is one selected token in the live rescue view. An empty Status
// means the token is still queued.
type RescueRow struct {
	Symbol   string
	Contract string
	Amount   string
	Status   rescue.Status
	TxHash   string
	Err      string
}

// RescueUpdateMsg wraps an orchestrator update as a Bubble Tea message.
type RescueUpdateMsg rescue.Update

// RescueDoneMsg is sent once Run returns.
type RescueDoneMsg struct {
	Err error
}

type rescueTickMsg struct{}

var spinFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// RescueModel is the Bubble Tea model for a running rescue batch.
type RescueModel struct {
	Network     string
	Destination string
	Rows        []RescueRow
	RowIndex    map[string]int
	Frame       int
	Finished    bool
	RunErr      error
	Quitting    bool
}

// NewRescueModel lays out one row per selected token found in tokens, in
// selection order.
func NewRescueModel(network, destination string, tokens []balance.TokenBalance, selected []string) RescueModel {
	m := RescueModel{Network: network, Destination: destination, RowIndex: map[string]int{}}
	for _, addr := range selected {
		tb, ok := balance.Find(tokens, addr)
		if !ok {
			continue
		}
		k := strings.ToLower(tb.ContractAddress)
		if _, dup := m.RowIndex[k]; dup {
			continue
		}
		m.RowIndex[k] = len(m.Rows)
		m.Rows = append(m.Rows, RescueRow{
			Symbol:   tb.TokenSymbol,
			Contract: tb.ContractAddress,
			Amount:   tb.Balance,
		})
	}
	return m
}

func (m RescueModel) Init() tea.Cmd {
	return rescueTick()
}

func rescueTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return rescueTickMsg{}
	})
}

func (m RescueModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit
		}

	case rescueTickMsg:
		if m.Finished {
			return m, nil
		}
		m.Frame = (m.Frame + 1) % len(spinFrames)
		return m, rescueTick()

	case RescueUpdateMsg:
		idx, ok := m.RowIndex[strings.ToLower(msg.Token.ContractAddress)]
		if !ok {
			return m, nil
		}
		row := &m.Rows[idx]
		row.Status = msg.Status
		if msg.TxHash != "" {
			row.TxHash = msg.TxHash
		}
		if msg.Err != nil {
			row.Err = trimErr(msg.Err.Error())
		}

	case RescueDoneMsg:
		m.Finished = true
		m.RunErr = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// Counts tallies rows by state: queued, pending, succeeded, failed.
func (m RescueModel) Counts() (queued, pending, ok, failed int) {
	for _, r := range m.Rows {
		switch r.Status {
		case rescue.StatusPending:
			pending++
		case rescue.StatusSuccess:
			ok++
		case rescue.StatusError:
			failed++
		default:
			queued++
		}
	}
	return
}

func (m RescueModel) View() string {
	if m.Quitting && !m.Finished {
		return StyleWarning.Render("Stopping after the current transfer…") + "\n"
	}

	var sb strings.Builder
	spin := spinFrames[m.Frame]

	title := fmt.Sprintf("⚡ Emergency transfer  ·  %s  →  %s", m.Network, TruncateAddr(m.Destination))
	sb.WriteString(StyleTitle.Render(title) + "\n")

	queued, pending, ok, failed := m.Counts()
	done := ok + failed
	var progress string
	if m.Finished {
		progress = StyleSuccess.Render(fmt.Sprintf("✓ %d/%d settled", done, len(m.Rows)))
		if failed > 0 {
			progress += "  " + StyleError.Render(fmt.Sprintf("%d failed", failed))
		}
	} else {
		progress = StyleInfo.Render(fmt.Sprintf("%s %d/%d settled · %d waiting on wallet · %d queued",
			spin, done, len(m.Rows), pending, queued))
	}
	sb.WriteString(progress + StyleMeta.Render("   press q to stop") + "\n\n")

	const (
		wSym    = 10
		wAmount = 24
		wStat   = 16
	)
	sep := StyleMeta.Render(strings.Repeat("─", wSym+wAmount+wStat+30))

	sb.WriteString(
		padR(StyleDim.Render("TOKEN"), wSym) + "  " +
			padR(StyleDim.Render("AMOUNT"), wAmount) + "  " +
			padR(StyleDim.Render("STATUS"), wStat) + "  " +
			StyleDim.Render("TX / ERROR") + "\n",
	)
	sb.WriteString(sep + "\n")

	for _, row := range m.Rows {
		stat, detail := renderRescueCells(row, spin)
		sb.WriteString(
			padR(StyleValue.Render(row.Symbol), wSym) + "  " +
				padR(StyleMeta.Render(row.Amount), wAmount) + "  " +
				padR(stat, wStat) + "  " +
				detail + "\n",
		)
	}
	sb.WriteString(sep + "\n")

	if m.RunErr != nil {
		sb.WriteString(Warn(m.RunErr.Error()) + "\n")
	}
	return sb.String()
}

// renderRescueCells returns the status and detail cells for one row.
func renderRescueCells(row RescueRow, spin string) (stat, detail string) {
	switch row.Status {
	case rescue.StatusPending:
		return StyleWarning.Render(spin + " confirming"), StyleMeta.Render("—")
	case rescue.StatusSuccess:
		return StyleSuccess.Render("✓ transferred"), StyleAddress.Render(TruncateAddr(row.TxHash))
	case rescue.StatusError:
		return StyleError.Render("✗ failed"), StyleError.Render(row.Err)
	default:
		return StyleMeta.Render("· queued"), StyleMeta.Render("—")
	}
}

// padR pads s to visible width n (ANSI-safe using lipgloss.Width).
func padR(s string, n int) string {
	w := lipgloss.Width(s)
	if w >= n {
		return s
	}
	return s + strings.Repeat(" ", n-w)
}

func trimErr(s string) string {
	// Keep the informative tail of wallet and RPC errors.
	for _, prefix := range []string{
		"user rejected", "insufficient funds", "execution reverted",
		"dial tcp", "connection refused", "context deadline",
	} {
		if idx := strings.Index(s, prefix); idx >= 0 {
			s = s[idx:]
			break
		}
	}
	if len(s) > 30 {
		return s[:30] + "…"
	}
	return s
}
