package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postcal/internal/api"
	"postcal/internal/calendar"
	"postcal/internal/config"
	appLog "postcal/internal/log"
	"postcal/internal/store"
	"postcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("postcal exiting with error", err)
		os.Exit(1)
	}
}

func run(flags flagConfig) error {
	appLog.Info("postcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if err := conf.ApplyEnv(flags.envFile); err != nil {
		return fmt.Errorf("load env file %s: %w", flags.envFile, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if err := conf.Validate(); err != nil {
		return err
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"locale", conf.Locale,
		"api_token_set", conf.API.Token != "",
		"once", flags.once,
	)

	timeout := time.Duration(conf.API.TimeoutSeconds) * time.Second
	client := api.NewClient(api.Options{
		URL:               conf.PostsURL(),
		Token:             conf.API.Token,
		Timeout:           timeout,
		RequestsPerSecond: conf.API.RequestsPerSecond,
		CacheDir:          conf.API.CacheDir,
	})
	st := store.New(client, loc)
	labeler := calendar.NewLabeler(loc, conf.Locale)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once {
		snap, err := st.Refresh(ctx)
		if err != nil {
			return err
		}
		opts := calendar.AgendaOptions{SortWithinDay: conf.Agenda.SortWithinDay}
		printAgenda(os.Stdout, calendar.BuildAgenda(snap.Events(), labeler, opts), labeler)
		return nil
	}

	// A failed first fetch is not fatal: the schedule retries and the API
	// reports the error until a snapshot exists.
	firstCtx, firstCancel := context.WithTimeout(ctx, timeout)
	_, _ = st.Refresh(firstCtx)
	firstCancel()

	if err := st.Start(ctx, conf.RefreshCron, timeout); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", conf.RefreshCron, err)
	}
	defer st.Stop()

	srv := web.NewServer(conf, st, labeler)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	appLog.Info("postcal exiting")
	return nil
}

// printAgenda writes the agenda as plain text, one day per block.
func printAgenda(w io.Writer, days []calendar.AgendaDay, labeler *calendar.Labeler) {
	if len(days) == 0 {
		fmt.Fprintln(w, labeler.EmptyMessage())
		return
	}
	for i, d := range days {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", d.Label, d.Key)
		for _, e := range d.Entries {
			fmt.Fprintf(w, "  %-8s  %-10s  %s: %s\n", e.Time, e.Event.Platform, e.Event.Title, e.Event.Message)
		}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/postcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional dotenv file with POSTCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print the agenda and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
