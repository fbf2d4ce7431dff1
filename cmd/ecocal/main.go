package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"ecocal/internal/config"
	appLog "ecocal/internal/log"
	"ecocal/internal/notify"
	"ecocal/internal/provider"
	"ecocal/internal/reminder"
	"ecocal/internal/web"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	syncLogs := appLog.Init(flags.debug)
	defer syncLogs()

	appLog.Info("ecocal starting", "version", Version)

	// SMTP credentials come from the environment; a .env file is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		appLog.Error("failed to load .env", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	target, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("invalid target timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"countries", len(conf.Countries),
		"horizon_days", conf.HorizonDays,
		"refresh", conf.RefreshCron,
		"lead_days", conf.Reminder.LeadDays,
		"send_hour", conf.Reminder.SendHour,
		"tick", conf.Reminder.Tick.String(),
		"once", flags.once,
	)

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

	client := provider.NewClient(conf.Provider)
	mailer := notify.NewMailer(conf.SMTP,
		os.Getenv("ECOCAL_SMTP_USERNAME"),
		os.Getenv("ECOCAL_SMTP_PASSWORD"),
	)

	sched := reminder.New(mailer, conf.Reminder.Tick)
	go sched.Run(ctx)

	server := web.NewServer(conf, client, sched, target)

	// Prime the dashboard cache once at startup, then keep it warm on the
	// configured cron schedule.
	server.Refresh(ctx)
	if flags.once {
		appLog.Info("single refresh completed, exiting")
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() { server.Refresh(ctx) }); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	httpServer := &http.Server{
		Addr:    conf.Listen,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("ecocal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/ecocal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+normalize cycle and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
