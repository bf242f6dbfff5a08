package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/notify"
	"github.com/DappAstra/DappAstra-ERC20-Generator/internal/wallet"
	tea "github.com/charmbracelet/bubbletea"
)

// maxWatchNotices caps the notice history shown by the session view.
const maxWatchNotices = 50

// SessionMsg carries a fresh session snapshot into the watch view.
type SessionMsg wallet.Snapshot

// NoticeMsg carries a bus notice into the watch view.
type NoticeMsg notify.Notice

// WatchModel is the Bubble Tea model for `wallet status --watch`: the
// current session plus the notices raised by wallet events.
type WatchModel struct {
	Session     wallet.Snapshot
	NetworkName string
	Notices     []notify.Notice
	Frame       int
	Quitting    bool

	// DisplayName resolves a network key; nil shows the raw key.
	DisplayName func(key string) string
}

type watchTickMsg struct{}

func watchSpinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return watchTickMsg{}
	})
}

func (m WatchModel) Init() tea.Cmd { return watchSpinTick() }

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit
		}

	case watchTickMsg:
		m.Frame = (m.Frame + 1) % len(spinFrames)
		return m, watchSpinTick()

	case SessionMsg:
		m.Session = wallet.Snapshot(msg)
		m.NetworkName = m.networkName(m.Session.NetworkKey)

	case NoticeMsg:
		// newest first
		m.Notices = append([]notify.Notice{notify.Notice(msg)}, m.Notices...)
		if len(m.Notices) > maxWatchNotices {
			m.Notices = m.Notices[:maxWatchNotices]
		}
	}

	return m, nil
}

func (m WatchModel) networkName(key string) string {
	if key == "" {
		return ""
	}
	if m.DisplayName != nil {
		return m.DisplayName(key)
	}
	return key
}

func (m WatchModel) View() string {
	if m.Quitting {
		return ""
	}

	var sb strings.Builder
	spin := spinFrames[m.Frame]

	sb.WriteString(StyleTitle.Render("👁  Wallet session") + "\n")

	s := m.Session
	switch s.State {
	case wallet.Connected:
		sb.WriteString(StyleSuccess.Render("● connected") + "  " + Addr(s.Account) + "\n")
		net := m.NetworkName
		if net == "" {
			net = s.NetworkKey
		}
		sb.WriteString(StyleMeta.Render("  network: ") + ChainName(net) +
			StyleMeta.Render(fmt.Sprintf("  (chain %d)", s.ChainID)) + "\n\n")
	case wallet.Connecting:
		sb.WriteString(StyleWarning.Render(spin+" waiting for the wallet…") + "\n\n")
	default:
		sb.WriteString(StyleMeta.Render("○ disconnected") + "\n\n")
	}

	if len(m.Notices) == 0 {
		sb.WriteString(StyleMeta.Render("  "+spin+" listening for account and network changes…") + "\n")
	}
	for _, n := range m.Notices {
		sb.WriteString(StyleMeta.Render(n.At.Format("15:04:05")) + "  " + Notice(n) + "\n")
	}

	sb.WriteString("\n" + StyleMeta.Render("[ q ] quit") + "\n")
	return sb.String()
}
