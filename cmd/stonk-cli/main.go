package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"stonklytics/internal/app"
	"stonklytics/internal/config"
	"stonklytics/internal/domain"
	"stonklytics/internal/health"
	"stonklytics/internal/util"
	"stonklytics/internal/watchlist"
)

const version = "0.1.0"

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app.App, cfg *config.Config, args []string) error
}

var commands = []command{
	{"version", "Print the CLI version", nil},
	{"status", "Probe the server's health endpoint", runStatus},
	{"search", "search <query>  Suggest tickers", runSearch},
	{"quote", "quote <ticker>  Show the current snapshot", runQuote},
	{"history", "history [-from D] [-to D] <ticker>  Daily prices", runHistory},
	{"financials", "financials [-limit N] [-timeframe T] <ticker>  Reported financials", runFinancials},
	{"news", "news [-limit N] <ticker>  Ticker news", runNews},
	{"market-news", "Market-wide headlines", runMarketNews},
	{"summary", "summary <ticker>  Short outlook", runSummary},
	{"watchlists", "List watchlists with prices", runWatchlists},
	{"create", "create <name>  Create a watchlist", runCreate},
	{"delete", "delete [-yes] <id>  Delete a watchlist", runDelete},
	{"add", "add [-list ID] [-name N] <ticker>  Add a ticker", runAdd},
	{"remove", "remove [-list ID] <ticker>  Remove a ticker", runRemove},
	{"chat", "chat [-list ID] [message]  Ask the assistant (interactive without a message)", runChat},
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: stonk-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.usage)
		}
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	if os.Args[1] == "version" {
		fmt.Printf("stonk-cli %s\n", version)
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == os.Args[1] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load(".env")
	cfgPath := "config/stonklytics.yaml"
	if p := os.Getenv("STONK_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := util.NewFileLogger(os.TempDir(), "stonk-cli", cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := app.New(cfg, logger)
	defer a.Close()

	if err := cmd.run(ctx, a, cfg, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", domain.UserMessage(err, err.Error()))
		closer.Close()
		os.Exit(1)
	}
}

// parse applies fs to args and returns the positional arguments, requiring
// at least need of them.
func parse(fs *flag.FlagSet, args []string, need int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < need {
		return nil, domain.Validation(fmt.Sprintf("%s: missing argument", fs.Name()))
	}
	return fs.Args(), nil
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func runStatus(ctx context.Context, _ *app.App, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", net.JoinHostPort(hostOr(cfg.Server.Host, "localhost"), fmt.Sprint(cfg.Server.GRPCPort)), "gRPC health address")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	statuses, err := health.Probe(ctx, *addr, []string{"", "watchlists", "market"})
	if err != nil {
		return err
	}
	tw := newTable()
	for _, s := range statuses {
		name := s.Service
		if name == "" {
			name = "overall"
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, s.Detail)
	}
	return tw.Flush()
}

func hostOr(host, def string) string {
	if host == "" || host == "0.0.0.0" {
		return def
	}
	return host
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

func runSearch(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	results, err := a.Client.Search(ctx, strings.Join(rest, " "))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	tw := newTable()
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Ticker, r.Name, r.PrimaryExchange)
	}
	return tw.Flush()
}

func runQuote(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	s, err := a.Snapshot.Load(ctx, rest[0])
	if err != nil {
		return err
	}
	tw := newTable()
	fmt.Fprintf(tw, "Ticker\t%s\n", s.Ticker)
	fmt.Fprintf(tw, "Name\t%s\n", s.Name)
	fmt.Fprintf(tw, "Price\t$%.2f\n", s.CurrentPrice)
	if c := util.FormatChange(s.CurrentPrice, s.ClosePrice); c != "" {
		fmt.Fprintf(tw, "Change\t%s\n", c)
	}
	fmt.Fprintf(tw, "Open / High / Low\t%.2f / %.2f / %.2f\n", s.OpenPrice, s.HighPrice, s.LowPrice)
	fmt.Fprintf(tw, "Volume\t%s\n", util.FormatInt(int64(s.Volume)))
	if s.MarketCap > 0 {
		fmt.Fprintf(tw, "Market cap\t%s\n", util.FormatCompact(s.MarketCap))
	}
	if s.High52Week > 0 {
		fmt.Fprintf(tw, "52-week range\t%.2f - %.2f\n", s.Low52Week, s.High52Week)
	}
	if s.Sector != "" {
		fmt.Fprintf(tw, "Sector\t%s / %s\n", s.Sector, s.Industry)
	}
	fmt.Fprintf(tw, "Source\t%s, %s\n", s.Source, s.LastUpdated.Local().Format("Jan 2 15:04"))
	return tw.Flush()
}

func runHistory(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	now := time.Now().UTC()
	from := fs.String("from", now.AddDate(0, 0, -30).Format("2006-01-02"), "start date (YYYY-MM-DD)")
	to := fs.String("to", now.Format("2006-01-02"), "end date (YYYY-MM-DD)")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	f, err := time.Parse("2006-01-02", *from)
	if err != nil {
		return domain.Validation("invalid -from date")
	}
	t, err := time.Parse("2006-01-02", *to)
	if err != nil {
		return domain.Validation("invalid -to date")
	}
	prices, err := a.Client.GetHistorical(ctx, rest[0], f, t)
	if err != nil {
		return err
	}
	tw := newTable()
	fmt.Fprintln(tw, "DATE\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
	for _, p := range prices {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n", p.Date, p.Open, p.High, p.Low, p.Close, util.FormatInt(int64(p.Volume)))
	}
	return tw.Flush()
}

func runFinancials(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("financials", flag.ExitOnError)
	limit := fs.Int("limit", 4, "number of reports")
	timeframe := fs.String("timeframe", "quarterly", "quarterly or annual")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	reports, err := a.Client.GetFinancials(ctx, rest[0], *limit, *timeframe)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("no reports")
		return nil
	}
	tw := newTable()
	for _, r := range reports {
		fmt.Fprintf(tw, "%s %s\t%s to %s\n", r.FiscalPeriod, r.FiscalYear, r.StartDate, r.EndDate)
		for _, statement := range sortedKeys(r.Financials) {
			fmt.Fprintf(tw, "  %s\t\n", strings.ReplaceAll(statement, "_", " "))
			items := r.Financials[statement]
			for _, key := range sortedKeys(items) {
				v := items[key]
				fmt.Fprintf(tw, "    %s\t%.0f %s\n", v.Label, v.Value, v.Unit)
			}
		}
	}
	return tw.Flush()
}

func runNews(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("news", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of articles")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	articles, err := a.Client.GetNews(ctx, rest[0], *limit)
	if err != nil {
		return err
	}
	for _, n := range articles {
		fmt.Printf("%s  %s\n  %s\n", n.PublishedUTC.Format("2006-01-02"), n.Title, n.ArticleURL)
	}
	return nil
}

func runMarketNews(ctx context.Context, a *app.App, _ *config.Config, _ []string) error {
	items, err := a.Client.GetMarketNews(ctx)
	if err != nil {
		return err
	}
	for _, n := range items {
		fmt.Printf("[%s] %s (%s, %s)\n", n.Category, n.Headline, n.Sentiment, n.Time)
		if n.Summary != "" {
			fmt.Printf("  %s\n", n.Summary)
		}
	}
	return nil
}

func runSummary(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	s, err := a.Client.GetSummary(ctx, rest[0])
	if err != nil {
		return err
	}
	fmt.Println(s.Summary)
	for _, r := range s.References {
		fmt.Printf("  %s: %s\n", r.Title, r.URL)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Watchlists
// ---------------------------------------------------------------------------

func runWatchlists(ctx context.Context, a *app.App, _ *config.Config, _ []string) error {
	if err := a.Watchlists.Refresh(ctx); err != nil {
		return err
	}
	lists := a.Watchlists.View()
	if len(lists) == 0 {
		fmt.Println("no watchlists")
		return nil
	}
	a.Prices.Populate(ctx, watchlist.AllTickers(lists))

	tw := newTable()
	for _, w := range lists {
		fmt.Fprintf(tw, "%s\t%s\t%d stocks\n", w.Name, w.ID, len(w.Items))
		for _, it := range w.Items {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", it.Ticker, it.Name, a.Prices.Display(it.Ticker))
		}
	}
	return tw.Flush()
}

func runCreate(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	rest, err := parse(fs, args, 0)
	if err != nil {
		return err
	}
	a.CreateForm.Open()
	a.CreateForm.SetName(strings.Join(rest, " "))
	w, err := a.CreateForm.Submit(ctx, a.Watchlists)
	if err != nil {
		return err
	}
	fmt.Printf("created %q (%s)\n", w.Name, w.ID)
	return nil
}

func runDelete(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	confirm := func(prompt string) bool {
		if *yes {
			return true
		}
		return ask(os.Stdin, os.Stdout, prompt)
	}
	if err := a.Watchlists.Delete(ctx, rest[0], confirm); err != nil {
		if errors.Is(err, domain.ErrNotConfirmed) {
			fmt.Println("cancelled")
			return nil
		}
		return err
	}
	fmt.Println("deleted")
	return nil
}

// ask prints prompt and reports whether the answer starts with y.
func ask(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}

func runAdd(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	list := fs.String("list", "", "watchlist id")
	name := fs.String("name", "", "display name")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := a.Watchlists.Refresh(ctx); err != nil {
		return err
	}
	item, err := a.Watchlists.AddMember(ctx, rest[0], *name, *list)
	if err != nil {
		return err
	}
	fmt.Printf("added %s\n", item.Ticker)
	return nil
}

func runRemove(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	list := fs.String("list", "", "watchlist id")
	rest, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if *list != "" {
		err = a.Watchlists.RemoveMemberFrom(ctx, *list, rest[0])
	} else {
		if err := a.Watchlists.Refresh(ctx); err != nil {
			return err
		}
		err = a.Watchlists.RemoveMember(ctx, rest[0])
	}
	if err != nil {
		var amb *watchlist.AmbiguousTickerError
		if errors.As(err, &amb) {
			for _, w := range amb.Watchlists {
				fmt.Fprintf(os.Stderr, "  %s\t%s\n", w.ID, w.Name)
			}
		}
		return err
	}
	fmt.Printf("removed %s\n", domain.NormalizeTicker(rest[0]))
	return nil
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func runChat(ctx context.Context, a *app.App, _ *config.Config, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	list := fs.String("list", "", "share a watchlist with the assistant")
	rest, err := parse(fs, args, 0)
	if err != nil {
		return err
	}
	if *list != "" {
		if err := a.Watchlists.Refresh(ctx); err != nil {
			return err
		}
		w, ok := a.Watchlists.Find(*list)
		if !ok {
			return domain.NewError(domain.KindNotFound, "Watchlist not found")
		}
		a.Chat.UseWatchlist(&w)
	}

	if len(rest) > 0 {
		reply, err := a.Chat.Send(ctx, strings.Join(rest, " "))
		if err != nil {
			return err
		}
		fmt.Println(reply.Text)
		return nil
	}

	fmt.Println(a.Chat.Messages()[0].Text)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			a.Chat.Clear()
			fmt.Println(a.Chat.Messages()[0].Text)
			continue
		}
		reply, err := a.Chat.Send(ctx, line)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		fmt.Println(reply.Text)
	}
}
