package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"stonklytics/internal/app"
	"stonklytics/internal/config"
	"stonklytics/internal/util"
)

func main() {
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

	logger, closer, err := util.NewFileLogger(os.TempDir(), "stonk-tui", cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := app.New(cfg, logger)
	defer a.Close()

	m := newModel(ctx, a)
	defer m.unsubscribe()
	a.Start()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
