package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"labsched/internal/config"
	"labsched/internal/holidayfeed"
	"labsched/internal/invite"
	appLog "labsched/internal/log"
	"labsched/internal/model"
	"labsched/internal/notify"
	"labsched/internal/schedule"
	"labsched/internal/store"
	"labsched/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string

	generate bool
	dryRun   bool
	count    int

	notify bool

	invite bool
	auto   bool

	verbose bool
}

func main() {
	flags := parseFlags()
	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("labsched starting", "version", "0.3.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	weekday, err := conf.Weekday()
	if err != nil {
		appLog.Error("invalid config", err)
		os.Exit(1)
	}

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

	st, err := store.Open(store.Config{Driver: conf.Store.Driver, Path: conf.Store.Path})
	if err != nil {
		appLog.Error("failed to open store", err, "driver", conf.Store.Driver, "path", conf.Store.Path)
		os.Exit(1)
	}
	defer st.Close()

	engine := schedule.New(st, st, schedule.Config{
		Weekday:               weekday,
		DataStreak:            conf.Meeting.DataStreak,
		JournalClubPresenters: conf.Meeting.JournalClubPresenters,
	})

	app := &application{cfg: conf, st: st, engine: engine}

	switch {
	case flags.generate:
		count := flags.count
		if count <= 0 {
			count = conf.Meeting.EventCount
		}
		err = app.runGenerate(ctx, count, flags.dryRun)
	case flags.notify:
		err = app.runNotify(ctx)
	case flags.invite:
		err = app.runInvite(ctx, flags.auto)
	default:
		err = app.runDaemon(ctx)
	}
	if err != nil {
		appLog.Error("run failed", err)
		os.Exit(1)
	}
	appLog.Info("labsched exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/labsched/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.generate, "generate", false, "Extend the schedule once and exit")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "With -generate: print the batch without writing it")
	flag.IntVar(&cfg.count, "count", 0, "With -generate: number of events (default from config)")
	flag.BoolVar(&cfg.notify, "notify", false, "Post the upcoming-schedule summary and exit")
	flag.BoolVar(&cfg.invite, "invite", false, "Email the next meeting's calendar invite and exit")
	flag.BoolVar(&cfg.auto, "auto", false, "With -invite: target the event exactly 7 days out")
	flag.BoolVar(&cfg.verbose, "v", false, "Enable debug logging")

	flag.Parse()
	return cfg
}

// application bundles the wired collaborators for the one-shot and daemon
// run modes.
type application struct {
	cfg    *config.Config
	st     store.Store
	engine *schedule.Engine
}

// feedOverrides resolves subscribed holiday feeds into overrides covering
// the generation horizon. Feed failures degrade to fixed rules plus the
// store's own override list.
func (a *application) feedOverrides(ctx context.Context, horizonWeeks int) []model.Override {
	if len(a.cfg.Feeds) == 0 {
		return nil
	}
	sources := make([]holidayfeed.Source, 0, len(a.cfg.Feeds))
	for _, fc := range a.cfg.Feeds {
		if fc.URL == "" {
			continue
		}
		id := fc.ID
		if id == "" {
			id = fc.Name
		}
		sources = append(sources, holidayfeed.Source{ID: id, URL: fc.URL})
	}

	fetcher := holidayfeed.NewFetcher(a.cfg.FeedCacheDir)
	now := time.Now()
	// Holidays stretch the schedule: leave headroom past one week per slot.
	end := now.AddDate(0, 0, 7*(horizonWeeks+8))
	return holidayfeed.Overrides(ctx, fetcher, sources, now, end)
}

func (a *application) runGenerate(ctx context.Context, count int, dryRun bool) error {
	extra := a.feedOverrides(ctx, count)

	if dryRun {
		events, err := a.engine.Preview(ctx, count, extra)
		if err != nil {
			return err
		}
		printPreview(events)
		return nil
	}

	events, err := a.engine.Generate(ctx, count, extra)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		fmt.Printf("Appended %d new events starting from %s.\n",
			len(events), events[0].Date.Format(model.DateLayout))
	}
	return nil
}

func printPreview(events []model.Event) {
	fmt.Println("\n--- DRY RUN PREVIEW ---")
	fmt.Printf("%-12s | %-15s | %s\n", "Date", "Type", "Presenter(s)")
	fmt.Println("---------------------------------------------")
	for _, ev := range events {
		row := ev.Row()
		fmt.Printf("%-12s | %-15s | %s\n", row[0], row[1], row[2])
	}
	fmt.Println("--- END PREVIEW (no changes written) ---")
}

func (a *application) runNotify(ctx context.Context) error {
	sender, err := notify.NewSender(notify.Config{
		WebhookURL:  a.cfg.Notify.WebhookURL,
		WebhookName: a.cfg.Notify.WebhookName,
		MaxEvents:   a.cfg.Notify.MaxEvents,
		Room:        a.cfg.Meeting.Room,
		Zoom:        a.cfg.Meeting.Zoom,
	})
	if err != nil {
		return err
	}
	events, err := a.st.LoadEvents(ctx)
	if err != nil {
		return err
	}
	upcoming := notify.Upcoming(events, time.Now(), a.cfg.Notify.MaxEvents)
	return sender.Send(ctx, upcoming)
}

func (a *application) runInvite(ctx context.Context, auto bool) error {
	events, err := a.st.LoadEvents(ctx)
	if err != nil {
		return err
	}
	ev, ok := invite.SelectEvent(events, time.Now(), auto)
	if !ok {
		appLog.Info("no upcoming event to announce", "auto", auto)
		return nil
	}
	recipients, err := a.st.LoadAttendees(ctx)
	if err != nil {
		return err
	}

	mailer := invite.NewMailer(invite.Config{
		SMTPServer: a.cfg.Invite.SMTPServer,
		SMTPPort:   a.cfg.Invite.SMTPPort,
		FromName:   a.cfg.Invite.FromName,
		BatchSize:  a.cfg.Invite.BatchSize,
		Room:       a.cfg.Meeting.Room,
		Zoom:       a.cfg.Meeting.Zoom,
		Contact:    a.cfg.Meeting.Contact,
		Location:   a.cfg.Location(),
		StartTime:  a.cfg.Meeting.StartTime,
		EndTime:    a.cfg.Meeting.EndTime,
	})
	return mailer.Send(ctx, ev, recipients)
}

// runDaemon serves the HTTP API and runs the refresh job on the configured
// cron schedule: top up the schedule when it is running short, then post
// the summary.
func (a *application) runDaemon(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(a.cfg.RefreshCron, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if err := a.refresh(jobCtx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh cron %q: %w", a.cfg.RefreshCron, err)
	}
	c.Start()
	defer c.Stop()

	server := web.NewServer(a.cfg, a.st, a.engine)
	httpServer := &http.Server{Addr: a.cfg.Listen, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	appLog.Info("daemon running",
		"listen", "http://"+a.cfg.Listen,
		"refresh", a.cfg.RefreshCron,
		"min_future_events", a.cfg.MinFutureEvents,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// refresh is the periodic daemon job.
func (a *application) refresh(ctx context.Context) error {
	events, err := a.st.LoadEvents(ctx)
	if err != nil {
		return err
	}
	remaining := len(notify.Upcoming(events, time.Now(), len(events)+1))

	if remaining < a.cfg.MinFutureEvents {
		appLog.Info("schedule running short; regenerating",
			"remaining", remaining, "min", a.cfg.MinFutureEvents)
		if _, err := a.engine.Generate(ctx, a.cfg.Meeting.EventCount, a.feedOverrides(ctx, a.cfg.Meeting.EventCount)); err != nil {
			return err
		}
	}

	if a.cfg.Notify.WebhookURL == "" {
		return nil
	}
	return a.runNotify(ctx)
}
