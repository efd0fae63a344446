// Package app assembles the client-side controllers around one backend
// client and one session, for the terminal front ends.
package app

import (
	"context"
	"errors"
	"log/slog"

	"stonklytics/internal/banner"
	"stonklytics/internal/chat"
	"stonklytics/internal/config"
	"stonklytics/internal/domain"
	"stonklytics/internal/identity"
	"stonklytics/internal/search"
	"stonklytics/internal/snapshot"
	"stonklytics/internal/util"
	"stonklytics/internal/watchlist"
	"stonklytics/pkg/stonklytics"
)

// App holds every controller of one client process.
type App struct {
	Client     *stonklytics.Client
	Session    *identity.Session
	Watchlists *watchlist.Store
	Selector   *watchlist.Selector
	CreateForm *watchlist.CreateForm
	Prices     *watchlist.PriceCache
	Search     *search.Controller
	Snapshot   *snapshot.Controller
	Chat       *chat.Conversation
	Banner     *banner.Board

	log     *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	binding *identity.Subscription
}

// New wires the controllers from cfg. The session starts signed in when cfg
// carries an identity; a bare user ID doubles as the token, which is what
// the reference backend accepts when it has no token table.
func New(cfg *config.Config, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	session := identity.NewSession(log)

	client := stonklytics.NewClient(cfg.Backend.BaseURL,
		stonklytics.WithTimeout(cfg.Backend.Timeout),
		stonklytics.WithChatTimeout(cfg.Backend.ChatTimeout),
		stonklytics.WithTokenSource(session),
		stonklytics.WithRateLimiter(util.NewRateLimiter(cfg.Backend.RateLimitPerMin)),
		stonklytics.WithLogger(log),
	)

	a := &App{
		Client:     client,
		Session:    session,
		CreateForm: &watchlist.CreateForm{},
		Prices:     watchlist.NewPriceCache(client, cfg.Client.PriceConcurrency, log),
		Chat:       chat.NewConversation(client, log),
		Banner:     banner.NewBoard(cfg.Client.BannerTTL),
		log:        log,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.Watchlists = watchlist.NewStore(client, session, log)
	a.Selector = watchlist.NewSelector(a.Watchlists)
	a.Snapshot = snapshot.New(client, snapshot.Options{Logger: log})
	a.Search = search.New(client, search.Options{
		Debounce: cfg.Client.SearchDebounce,
		MinChars: cfg.Client.SearchMinChars,
		OnSelect: func(ticker string) { go a.open(ticker) },
		Logger:   log,
	})

	if user, token, ok := identityFrom(cfg.Identity); ok {
		session.SignIn(user, token)
	}
	return a
}

func identityFrom(id config.Identity) (domain.User, string, bool) {
	token := id.IDToken
	if token == "" {
		token = id.UserID
	}
	if token == "" {
		return domain.User{}, "", false
	}
	uid := id.UserID
	if uid == "" {
		uid = "me"
	}
	return domain.User{ID: uid, Email: id.Email}, token, true
}

// Start binds the watchlist store to the session, which also triggers the
// first refresh when someone is signed in.
func (a *App) Start() {
	a.binding = a.Watchlists.BindSession(a.ctx)
}

// open loads the snapshot of a selected suggestion and reports failures on
// the banner.
func (a *App) open(ticker string) {
	_, err := a.Snapshot.Load(a.ctx, ticker)
	if err != nil && !errors.Is(err, snapshot.ErrSuperseded) && a.ctx.Err() == nil {
		a.Banner.Report(err, "", snapshot.MsgLoadFailed)
	}
}

// Close stops background work and cancels in-flight requests.
func (a *App) Close() {
	a.cancel()
	if a.binding != nil {
		a.binding.Close()
	}
	a.Search.Close()
	a.Banner.Dismiss()
}

// Logger returns the logger the controllers share.
func (a *App) Logger() *slog.Logger { return a.log }
