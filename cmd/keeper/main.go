package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/4thel00z/keeper/internal"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	if tryExternalCommand(ctx) {
		return
	}

	a, closer := newApp(os.Stderr)
	defer closer.Close()

	rootCmd := NewRootCmd(version, a)
	if err := fang.Execute(ctx, rootCmd); err != nil {
		closer.Close()
		os.Exit(1)
	}
}

func tryExternalCommand(ctx context.Context) bool {
	if len(os.Args) < 2 {
		return false
	}

	cmd := os.Args[1]
	if cmd == "" || cmd[0] == '-' {
		return false
	}

	if _, err := findExternal(cmd); err != nil {
		return false
	}

	if err := executeExternal(ctx, cmd, os.Args[2:], version); err != nil {
		fmt.Fprintf(os.Stderr, "keeper %s: %v\n", cmd, err)
		os.Exit(1)
	}

	return true
}

type app struct {
	resolver *internal.LocationResolver
	logger   *log.Logger
	open     internal.EnvOpener
	renderer *internal.SmartlogRenderer

	smartlogSvc   *internal.SmartlogService
	visibilitySvc *internal.VisibilityService
	historySvc    *internal.HistoryService
	statusSvc     *internal.StatusService
}

// newApp wires the services. The logger honours the repository's log config
// when there is one; outside a repository it falls back to the defaults.
func newApp(logOut io.Writer) (*app, io.Closer) {
	resolver := internal.NewLocationResolver()

	cfg := internal.DefaultConfig()
	if loc, err := resolver.Resolve(""); err == nil {
		if loaded, err := internal.LoadConfig(loc); err == nil {
			cfg = loaded
		}
	}

	logger, closer, err := internal.NewLogger(cfg.Log, logOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keeper: open log file: %v\n", err)
		logger, closer, _ = internal.NewLogger(internal.LogConfig{Level: cfg.Log.Level}, logOut)
	}

	return newAppWith(resolver, logger, internal.NewSmartlogRenderer(internal.DefaultSmartlogStyles())), closer
}

func newAppWith(resolver *internal.LocationResolver, logger *log.Logger, renderer *internal.SmartlogRenderer) *app {
	open := internal.NewEnvOpener(resolver, logger)
	return &app{
		resolver:      resolver,
		logger:        logger,
		open:          open,
		renderer:      renderer,
		smartlogSvc:   internal.NewSmartlogService(open),
		visibilitySvc: internal.NewVisibilityService(open),
		historySvc:    internal.NewHistoryService(open, renderer),
		statusSvc:     internal.NewStatusService(open),
	}
}

func (a *app) openAt(loc internal.Location, cfg *internal.Config) (*internal.Env, error) {
	return internal.OpenEnv(loc, cfg, a.logger)
}
