package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"agendacal/internal/calendar"
	"agendacal/internal/config"
	appLog "agendacal/internal/log"
	"agendacal/internal/snapshot"
	"agendacal/internal/web"
)

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
}

func main() {
	flags := parseFlags()

	if n := config.LoadDotEnv(flags.envFile); n > 0 {
		appLog.Debug("loaded env file", "path", flags.envFile)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("agendacal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"sweep", conf.SweepCron,
		"snapshot_max_idle_minutes", conf.SnapshotMaxIdleMinutes,
		"all_day_boundary", conf.AllDayBoundary,
		"column_scope", conf.ColumnScope,
		"max_occurrences", conf.Recurrence.MaxOccurrences,
	)

	store := snapshot.NewStore()
	views := snapshot.NewViews(store, calendar.OptionsFromConfig(conf))
	interlock := snapshot.NewInterlock()

	sweeper, err := snapshot.NewSweeper(conf.SweepCron, conf.SnapshotMaxIdle(), store, views, interlock)
	if err != nil {
		appLog.Error("invalid sweep schedule", err, "sweep", conf.SweepCron)
		os.Exit(1)
	}
	sweeper.Start()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	srv := web.NewServer(conf, store, views, interlock)
	serveErr := srv.ListenAndServe(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	sweeper.Stop(stopCtx)

	if serveErr != nil {
		appLog.Error("HTTP server failed", serveErr, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("agendacal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/agendacal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Optional KEY=VALUE file loaded before the config")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")

	flag.Parse()

	return cfg
}
