package main

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"stonklytics/internal/app"
	"stonklytics/internal/banner"
	"stonklytics/internal/chat"
	"stonklytics/internal/domain"
	"stonklytics/internal/search"
	"stonklytics/internal/snapshot"
	"stonklytics/internal/watchlist"
)

type focus int

const (
	focusSearch focus = iota
	focusWatchlists
	focusChat
	focusCount
)

// snapshotKey identifies the selector instance on the snapshot card.
const snapshotKey = "snapshot"

// Messages.
type searchMsg search.View
type snapshotMsg snapshot.View
type storeMsg watchlist.Event
type priceMsg string
type bannerMsg banner.Message
type chatMsg struct{}

// opDoneMsg carries the outcome of a mutation for the banner.
type opDoneMsg struct {
	ok       string
	fallback string
	err      error
}

// createDoneMsg reports a finished create-form submit. Failures stay on
// the form instead of the banner.
type createDoneMsg struct{ err error }

type subscription struct {
	id    int
	close func(int)
}

type model struct {
	ctx context.Context
	a   *app.App

	focus     focus
	input     textinput.Model
	nameInput textinput.Model
	chatInput textinput.Model

	search search.View
	sugIdx int
	snap   snapshot.View

	lists   []domain.Watchlist
	listIdx int
	itemIdx int

	confirmDelete string // watchlist id awaiting y/n

	notice    banner.Message
	hasNotice bool

	width, height int

	searchCh <-chan search.View
	snapCh   <-chan snapshot.View
	storeCh  <-chan watchlist.Event
	priceCh  <-chan string
	bannerCh <-chan banner.Message
	chatCh   <-chan int
	subs     []subscription
}

func newModel(ctx context.Context, a *app.App) *model {
	in := textinput.New()
	in.Placeholder = "Search tickers or companies"
	in.Focus()

	name := textinput.New()
	name.Placeholder = "Watchlist name"

	chatIn := textinput.New()
	chatIn.Placeholder = "Ask about stocks, markets, or investing"

	m := &model{ctx: ctx, a: a, input: in, nameInput: name, chatInput: chatIn}

	var id int
	id, m.searchCh = a.Search.Subscribe(16)
	m.subs = append(m.subs, subscription{id, a.Search.Unsubscribe})
	id, m.snapCh = a.Snapshot.Subscribe(16)
	m.subs = append(m.subs, subscription{id, a.Snapshot.Unsubscribe})
	id, m.storeCh = a.Watchlists.Subscribe(16)
	m.subs = append(m.subs, subscription{id, a.Watchlists.Unsubscribe})
	id, m.priceCh = a.Prices.Subscribe(64)
	m.subs = append(m.subs, subscription{id, a.Prices.Unsubscribe})
	id, m.bannerCh = a.Banner.Subscribe(16)
	m.subs = append(m.subs, subscription{id, a.Banner.Unsubscribe})
	id, m.chatCh = a.Chat.Subscribe(16)
	m.subs = append(m.subs, subscription{id, a.Chat.Unsubscribe})
	return m
}

func (m *model) unsubscribe() {
	for _, s := range m.subs {
		s.close(s.id)
	}
}

// listen waits for one value on ch and wraps it as a message. Each handler
// re-arms its listener.
func listen[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

func (m *model) listenSearch() tea.Cmd {
	return listen(m.searchCh, func(v search.View) tea.Msg { return searchMsg(v) })
}

func (m *model) listenSnapshot() tea.Cmd {
	return listen(m.snapCh, func(v snapshot.View) tea.Msg { return snapshotMsg(v) })
}

func (m *model) listenStore() tea.Cmd {
	return listen(m.storeCh, func(e watchlist.Event) tea.Msg { return storeMsg(e) })
}

func (m *model) listenPrices() tea.Cmd {
	return listen(m.priceCh, func(t string) tea.Msg { return priceMsg(t) })
}

func (m *model) listenBanner() tea.Cmd {
	return listen(m.bannerCh, func(b banner.Message) tea.Msg { return bannerMsg(b) })
}

func (m *model) listenChat() tea.Cmd {
	return listen(m.chatCh, func(int) tea.Msg { return chatMsg{} })
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.listenSearch(),
		m.listenSnapshot(),
		m.listenStore(),
		m.listenPrices(),
		m.listenBanner(),
		m.listenChat(),
	)
}

// op runs a mutation off the UI goroutine and reports it on the banner.
func (m *model) op(ok, fallback string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{ok: ok, fallback: fallback, err: fn(m.ctx)}
	}
}

func (m *model) submitCreate() tea.Cmd {
	done, err := m.a.CreateForm.Start(m.ctx, m.a.Watchlists)
	if err != nil {
		return func() tea.Msg { return createDoneMsg{err: err} }
	}
	return func() tea.Msg {
		return createDoneMsg{err: <-done}
	}
}

func (m *model) populatePrices() tea.Cmd {
	tickers := watchlist.AllTickers(m.lists)
	if len(tickers) == 0 {
		return nil
	}
	return func() tea.Msg {
		m.a.Prices.Populate(m.ctx, tickers)
		return nil
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case searchMsg:
		m.search = search.View(msg)
		if m.sugIdx >= len(m.search.Suggestions) {
			m.sugIdx = 0
		}
		return m, m.listenSearch()

	case snapshotMsg:
		m.snap = snapshot.View(msg)
		return m, m.listenSnapshot()

	case storeMsg:
		m.lists = m.a.Watchlists.View()
		m.clampSelection()
		cmds := []tea.Cmd{m.listenStore()}
		if msg.Type == watchlist.EventReplaced {
			cmds = append(cmds, m.populatePrices())
		}
		if msg.Type == watchlist.EventCleared {
			m.a.Prices.Reset()
		}
		return m, tea.Batch(cmds...)

	case priceMsg:
		return m, m.listenPrices()

	case bannerMsg:
		m.notice = banner.Message(msg)
		m.hasNotice = msg.Text != ""
		return m, m.listenBanner()

	case chatMsg:
		return m, m.listenChat()

	case opDoneMsg:
		if msg.err != nil || msg.ok != "" {
			m.a.Banner.Report(msg.err, msg.ok, msg.fallback)
		}
		return m, nil

	case createDoneMsg:
		if !m.a.CreateForm.State().Open {
			m.nameInput.Blur()
			m.nameInput.SetValue("")
		}
		if msg.err == nil {
			m.a.Banner.Success("Watchlist created")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) clampSelection() {
	if m.listIdx >= len(m.lists) {
		m.listIdx = max(len(m.lists)-1, 0)
	}
	if len(m.lists) == 0 {
		m.itemIdx = 0
		return
	}
	if n := len(m.lists[m.listIdx].Items); m.itemIdx >= n {
		m.itemIdx = max(n-1, 0)
	}
}

func (m *model) setFocus(f focus) {
	m.focus = f
	m.input.Blur()
	m.chatInput.Blur()
	switch f {
	case focusSearch:
		m.input.Focus()
	case focusChat:
		m.chatInput.Focus()
	}
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		if !m.a.CreateForm.State().Open && m.confirmDelete == "" {
			m.setFocus((m.focus + 1) % focusCount)
			return m, nil
		}
	case "esc":
		m.a.Search.Dismiss()
		m.a.Selector.Dismiss()
		m.a.Banner.Dismiss()
		if m.a.CreateForm.State().Open {
			m.a.CreateForm.Cancel()
			if !m.a.CreateForm.State().Open {
				m.nameInput.Blur()
			}
		}
		m.confirmDelete = ""
		return m, nil
	}

	switch m.focus {
	case focusSearch:
		return m.searchKey(msg)
	case focusWatchlists:
		return m.watchlistKey(msg)
	default:
		return m.chatKey(msg)
	}
}

func (m *model) searchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.a.Selector.IsOpen(snapshotKey) && len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		opts := m.a.Selector.Options()
		i := int(key[0] - '1')
		if i >= len(opts) || m.snap.Snapshot == nil {
			return m, nil
		}
		snap := m.snap.Snapshot
		w := opts[i]
		return m, m.op("Added "+snap.Ticker+" to "+w.Name, watchlist.MsgAddFailed, func(ctx context.Context) error {
			_, err := m.a.Selector.Choose(ctx, snapshotKey, w.ID, snap.Ticker, snap.Name)
			return err
		})
	}

	switch key {
	case "up":
		if m.sugIdx > 0 {
			m.sugIdx--
		}
		return m, nil
	case "down":
		if m.sugIdx < len(m.search.Suggestions)-1 {
			m.sugIdx++
		}
		return m, nil
	case "enter":
		ticker := m.input.Value()
		if m.search.Visible && m.sugIdx < len(m.search.Suggestions) {
			ticker = m.search.Suggestions[m.sugIdx].Ticker
		}
		if strings.TrimSpace(ticker) == "" {
			m.a.Banner.Error(snapshot.MsgMissingTicker)
			return m, nil
		}
		m.a.Search.Select(ticker)
		m.input.SetValue(domain.NormalizeTicker(ticker))
		m.sugIdx = 0
		return m, nil
	case "ctrl+a":
		if m.snap.Snapshot == nil {
			return m, nil
		}
		if err := m.a.Selector.Toggle(snapshotKey); err != nil {
			m.a.Banner.Report(err, "", watchlist.MsgAddFailed)
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.a.Search.InputChanged(v)
	}
	return m, cmd
}

func (m *model) watchlistKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if form := m.a.CreateForm.State(); form.Open {
		if form.Submitting {
			return m, nil
		}
		if msg.String() == "enter" {
			m.a.CreateForm.SetName(m.nameInput.Value())
			return m, m.submitCreate()
		}
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}

	if id := m.confirmDelete; id != "" {
		m.confirmDelete = ""
		if msg.String() != "y" {
			return m, nil
		}
		return m, m.op("Watchlist deleted", watchlist.MsgDeleteFailed, func(ctx context.Context) error {
			return m.a.Watchlists.Delete(ctx, id, func(string) bool { return true })
		})
	}

	switch msg.String() {
	case "up", "k":
		if m.listIdx > 0 {
			m.listIdx--
			m.itemIdx = 0
		}
	case "down", "j":
		if m.listIdx < len(m.lists)-1 {
			m.listIdx++
			m.itemIdx = 0
		}
	case "left", "h":
		if m.itemIdx > 0 {
			m.itemIdx--
		}
	case "right", "l":
		if len(m.lists) > 0 && m.itemIdx < len(m.lists[m.listIdx].Items)-1 {
			m.itemIdx++
		}
	case "n":
		m.a.CreateForm.Open()
		m.nameInput.SetValue("")
		m.nameInput.Focus()
	case "d":
		if len(m.lists) > 0 {
			m.confirmDelete = m.lists[m.listIdx].ID
		}
	case "x":
		if w, ok := m.selectedList(); ok && len(w.Items) > 0 {
			ticker := w.Items[m.itemIdx].Ticker
			return m, m.op("Removed "+ticker, watchlist.MsgRemoveFailed, func(ctx context.Context) error {
				return m.a.Watchlists.RemoveMemberFrom(ctx, w.ID, ticker)
			})
		}
	case "enter":
		if w, ok := m.selectedList(); ok && len(w.Items) > 0 {
			m.a.Search.Select(w.Items[m.itemIdx].Ticker)
			m.setFocus(focusSearch)
		}
	case "c":
		if w, ok := m.selectedList(); ok {
			m.a.Chat.UseWatchlist(&w)
			m.a.Banner.Info("Sharing " + w.Name + " with the assistant")
			m.setFocus(focusChat)
		}
	case "r":
		return m, m.op("", watchlist.MsgLoadFailed, m.a.Watchlists.Refresh)
	}
	return m, nil
}

func (m *model) selectedList() (domain.Watchlist, bool) {
	if m.listIdx < len(m.lists) {
		return m.lists[m.listIdx], true
	}
	return domain.Watchlist{}, false
}

func (m *model) chatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := m.chatInput.Value()
		if strings.TrimSpace(text) == "" || m.a.Chat.Sending() {
			return m, nil
		}
		m.chatInput.SetValue("")
		return m, func() tea.Msg {
			if _, err := m.a.Chat.Send(m.ctx, text); err != nil && !errors.Is(err, chat.ErrCleared) {
				m.a.Banner.Report(err, "", "Failed to send message")
			}
			return nil
		}
	case "ctrl+l":
		m.a.Chat.Clear()
		m.a.Chat.UseWatchlist(nil)
		return m, nil
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}
