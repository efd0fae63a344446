package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stonklytics/internal/banner"
	"stonklytics/internal/chat"
	"stonklytics/internal/domain"
	"stonklytics/internal/snapshot"
	"stonklytics/internal/util"
)

// Styles.
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 1)
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	activeStyle   = paneStyle.BorderForeground(lipgloss.Color("12"))
	symbolStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	modelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Padding(0, 1)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")).Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")).Padding(0, 1)
)

// chatLines is how many trailing chat messages are shown.
const chatLines = 8

func (m *model) pane(f focus, width int, body string) string {
	st := paneStyle
	if m.focus == f {
		st = activeStyle
	}
	return st.Width(width).Render(body)
}

func (m *model) View() string {
	width := m.width
	if width < 60 {
		width = 100
	}
	half := width/2 - 4

	var b strings.Builder
	user := "signed out"
	if u := m.a.Session.Current(); u != nil {
		user = u.ID
		if u.Email != "" {
			user = u.Email
		}
	}
	b.WriteString(titleStyle.Render("stonklytics"))
	b.WriteString(dimStyle.Render("  " + user))
	b.WriteString("\n")

	left := m.pane(focusSearch, half, m.renderSearch())
	right := m.pane(focusWatchlists, half, m.renderWatchlists())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	b.WriteString(m.pane(focusChat, width-4, m.renderChat()))
	b.WriteString("\n")
	b.WriteString(m.renderBanner())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.help()))
	return b.String()
}

func (m *model) renderSearch() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.search.Visible {
		if len(m.search.Suggestions) == 0 {
			b.WriteString(dimStyle.Render("  no matches") + "\n")
		}
		for i, s := range m.search.Suggestions {
			line := fmt.Sprintf("%-6s %s", s.Ticker, s.Name)
			if i == m.sugIdx {
				b.WriteString(selectedStyle.Render(line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.renderSnapshot())
	return b.String()
}

func (m *model) renderSnapshot() string {
	switch m.snap.State {
	case snapshot.Idle:
		return dimStyle.Render("Search for a stock to see its snapshot.")
	case snapshot.Loading:
		return dimStyle.Render("Loading " + m.snap.Ticker + "...")
	case snapshot.Failed:
		return lossStyle.Render(m.snap.Error)
	}
	s := m.snap.Snapshot
	if s == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", symbolStyle.Render(s.Ticker), s.Name)
	price := fmt.Sprintf("$%.2f", s.CurrentPrice)
	if c := util.FormatChange(s.CurrentPrice, s.ClosePrice); c != "" {
		st := gainStyle
		if s.CurrentPrice < s.ClosePrice {
			st = lossStyle
		}
		price += "  " + st.Render(c)
	}
	b.WriteString(price + "\n")
	fmt.Fprintf(&b, "O %.2f  H %.2f  L %.2f  Vol %s\n", s.OpenPrice, s.HighPrice, s.LowPrice, util.FormatInt(int64(s.Volume)))
	if s.MarketCap > 0 {
		fmt.Fprintf(&b, "Market cap %s\n", util.FormatCompact(s.MarketCap))
	}
	if s.High52Week > 0 {
		fmt.Fprintf(&b, "52w %.2f - %.2f\n", s.Low52Week, s.High52Week)
	}
	if s.Sector != "" {
		b.WriteString(dimStyle.Render(s.Sector+" / "+s.Industry) + "\n")
	}

	if m.a.Selector.IsOpen(snapshotKey) {
		b.WriteString("\nAdd to:\n")
		for i, w := range m.a.Selector.Options() {
			if i == 9 {
				break
			}
			mark := ""
			if w.Has(s.Ticker) {
				mark = dimStyle.Render(" (already added)")
			}
			fmt.Fprintf(&b, "  %d. %s%s\n", i+1, w.Name, mark)
		}
	}
	return b.String()
}

func (m *model) renderWatchlists() string {
	var b strings.Builder
	b.WriteString(symbolStyle.Render("Watchlists"))
	if op, busy := m.a.Watchlists.Busy(); busy {
		b.WriteString(dimStyle.Render("  " + op + "..."))
	}
	b.WriteString("\n")

	b.WriteString(m.renderCreateForm())
	if !m.a.Session.SignedIn() {
		b.WriteString(dimStyle.Render("Please log in to view your watchlists"))
		return b.String()
	}
	if len(m.lists) == 0 {
		b.WriteString(dimStyle.Render("No watchlists yet. Press n to create one."))
		return b.String()
	}

	for i, w := range m.lists {
		header := fmt.Sprintf("%s (%d)", w.Name, len(w.Items))
		if i == m.listIdx && m.focus == focusWatchlists {
			header = selectedStyle.Render(header)
		}
		if m.confirmDelete == w.ID {
			header += lossStyle.Render("  delete? y/n")
		}
		b.WriteString(header + "\n")
		for j, it := range w.Items {
			line := fmt.Sprintf("%-6s %10s", it.Ticker, m.a.Prices.Display(it.Ticker))
			if i == m.listIdx && j == m.itemIdx && m.focus == focusWatchlists {
				line = symbolStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func (m *model) renderCreateForm() string {
	form := m.a.CreateForm.State()
	if !form.Open {
		return ""
	}
	if form.Submitting {
		return dimStyle.Render("Creating "+strings.TrimSpace(form.Name)+"...") + "\n"
	}
	out := m.nameInput.View() + "\n"
	if form.Error != "" {
		out += lossStyle.Render(form.Error) + "\n"
	}
	return out
}

func (m *model) renderChat() string {
	msgs := m.a.Chat.Messages()
	if len(msgs) > chatLines {
		msgs = msgs[len(msgs)-chatLines:]
	}
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(renderMessage(msg))
		b.WriteString("\n")
	}
	if m.a.Chat.Sending() {
		b.WriteString(dimStyle.Render("Thinking...") + "\n")
	}
	b.WriteString(m.chatInput.View())
	return b.String()
}

func renderMessage(msg chat.Message) string {
	if msg.Role == domain.RoleUser {
		return userStyle.Render("you: ") + msg.Text
	}
	text := modelStyle.Render(msg.Text)
	if msg.Failed {
		text = lossStyle.Render(msg.Text)
	}
	return dimStyle.Render("ai:  ") + text
}

func (m *model) renderBanner() string {
	if !m.hasNotice {
		return ""
	}
	switch m.notice.Kind {
	case banner.Success:
		return successStyle.Render(m.notice.Text)
	case banner.Error:
		return errorStyle.Render(m.notice.Text)
	default:
		return infoStyle.Render(m.notice.Text)
	}
}

func (m *model) help() string {
	switch m.focus {
	case focusSearch:
		return "tab: next pane  enter: open  ctrl+a: add to watchlist  esc: dismiss  ctrl+c: quit"
	case focusWatchlists:
		return "tab: next pane  j/k: list  h/l: stock  enter: open  n: new  d: delete  x: remove  c: chat  r: refresh"
	default:
		return "tab: next pane  enter: send  ctrl+l: clear  ctrl+c: quit"
	}
}
