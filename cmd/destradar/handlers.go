package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/destradar/internal/config"
	"github.com/elonfeng/destradar/internal/export"
	"github.com/elonfeng/destradar/internal/logging"
	"github.com/elonfeng/destradar/internal/metrics"
	"github.com/elonfeng/destradar/internal/scheduler"
	"github.com/elonfeng/destradar/internal/store"
	"github.com/elonfeng/destradar/pkg/alert"
	"github.com/elonfeng/destradar/pkg/geo"
	"github.com/elonfeng/destradar/pkg/provider"
	"github.com/elonfeng/destradar/pkg/rank"
	"github.com/elonfeng/destradar/pkg/server"
)

type rankOptions struct {
	origin     string
	start      string
	end        string
	candidates string
	currency   string
	weights    rank.Weights
	jsonOutput bool
	csvPath    string
	save       bool

	overrideCost     bool
	overrideWeather  bool
	overrideActivity bool
	overrideTravel   bool
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func buildSources(cfg *config.Config) rank.Sources {
	p := cfg.Providers
	timeout := p.ParseTimeout()
	backoff := p.Backoff()

	amadeus := provider.NewAmadeus(provider.AmadeusConfig{
		ClientID:     p.Amadeus.ClientID,
		ClientSecret: p.Amadeus.ClientSecret,
		BaseURL:      p.Amadeus.BaseURL,
		Timeout:      timeout,
		Backoff:      backoff,
	})

	sources := rank.Sources{
		Flights: amadeus,
		Hotels:  amadeus,
		Weather: provider.NewOpenWeather(p.OpenWeather.APIKey, p.OpenWeather.BaseURL, timeout, backoff),
	}

	if p.Feeds.Enabled && len(p.Feeds.Feeds) > 0 {
		sources.Activity = provider.NewFeedActivity(p.Feeds.Feeds,
			provider.WithRadius(p.Feeds.RadiusKM),
			provider.WithSaturation(p.Feeds.Saturation),
			provider.WithKeywords(p.Feeds.ExtraKeywords, p.Feeds.ExcludeKeywords),
		)
	} else {
		sources.Activity = provider.NewYelp(p.Yelp.APIKey, p.Yelp.BaseURL, timeout, backoff)
	}
	return sources
}

func buildEngine(cfg *config.Config, logger *zap.Logger) *rank.Engine {
	agg := rank.NewAggregator(buildSources(cfg), geo.NewTable(cfg.Coordinates),
		rank.WithLogger(logger),
		rank.WithObserver(metrics.Observer{}),
		rank.WithConcurrency(cfg.Search.Concurrency),
		rank.WithFallbackOrigin(cfg.Search.FallbackOrigin),
	)
	return rank.NewEngine(agg, logger)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func rankRequest(cfg *config.Config, opts rankOptions, now time.Time) (rank.Request, rank.Weights) {
	search := cfg.Search
	req := rank.Request{
		Origin:       opts.origin,
		StartDate:    opts.start,
		EndDate:      opts.end,
		Destinations: rank.ParseCodes(opts.candidates),
		Currency:     opts.currency,
		Prefs:        cfg.Prefs,
	}
	if req.Origin == "" {
		req.Origin = search.Origin
	}
	if req.StartDate == "" {
		req.StartDate, _ = search.Dates(now)
	}
	if req.EndDate == "" {
		start, err := time.Parse(rank.DateLayout, req.StartDate)
		if err != nil {
			// left for Validate to reject
			start = now
		}
		req.EndDate = start.AddDate(0, 0, search.TripLengthDays).Format(rank.DateLayout)
	}
	if len(req.Destinations) == 0 {
		req.Destinations = search.Candidates
	}
	if req.Currency == "" {
		req.Currency = search.Currency
	}

	w := cfg.Weights
	if opts.overrideCost {
		w.Cost = opts.weights.Cost
	}
	if opts.overrideWeather {
		w.Weather = opts.weights.Weather
	}
	if opts.overrideActivity {
		w.Activity = opts.weights.Activity
	}
	if opts.overrideTravel {
		w.Travel = opts.weights.Travel
	}
	return req, w
}

func runRank(ctx context.Context, opts rankOptions) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	req, weights := rankRequest(cfg, opts, time.Now())
	engine := buildEngine(cfg, logger)

	started := time.Now()
	res, err := engine.Run(ctx, req, weights)
	metrics.ObserveRun(metrics.TriggerCLI, started, res, err)
	if err != nil {
		return err
	}

	for _, code := range res.Dropped {
		fmt.Fprintf(os.Stderr, "warning: no coordinates for %s, skipped\n", code)
	}

	if opts.csvPath != "" {
		if err := writeCSVFile(opts.csvPath, res.Ranked); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", len(res.Ranked), opts.csvPath)
	}

	if opts.save {
		db, err := store.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		id, err := db.SaveRun(ctx, res, metrics.TriggerCLI)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "saved run %d\n", id)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printRanked(os.Stdout, res)
}

func printRanked(out io.Writer, res *rank.Result) error {
	if len(res.Ranked) == 0 {
		fmt.Fprintln(out, "no destinations ranked (check candidate codes or add coordinates)")
		return nil
	}

	fmt.Fprintf(out, "%s -> %d destinations, %s to %s\n\n",
		res.Request.Origin, len(res.Ranked), res.Request.StartDate, res.Request.EndDate)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tDEST\tSCORE\tTOTAL (%s)\tWEATHER\tACTIVITY\tTRAVEL (h)\tFALLBACKS\n", res.Request.Currency)
	for i, r := range res.Ranked {
		fallbacks := make([]string, len(r.Fallbacks))
		for j, s := range r.Fallbacks {
			fallbacks[j] = string(s)
		}
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%s\t%.2f\t%.2f\t%.1f\t%s\n",
			i+1, r.Destination, r.Score, r.TotalCost, r.WeatherScore, r.ActivityScore,
			r.TravelTimeHours, strings.Join(fallbacks, ","))
	}
	return w.Flush()
}

func writeCSVFile(path string, ranked []rank.Ranked) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := rank.WriteCSV(f, ranked); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runRuns(ctx context.Context, limit int, jsonOutput bool) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no runs stored (try: destradar rank --save)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORIGIN\tDATES\tRANKED\tTRIGGER\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s..%s\t%d\t%s\t%s\n",
			r.ID, r.Origin, r.StartDate, r.EndDate, r.CandidateCount, r.Trigger,
			r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runExport(ctx context.Context, runID int64, out string, upload bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	run, err := loadRun(ctx, db, runID)
	if err != nil {
		return err
	}

	if upload {
		if !cfg.Export.MinIO.Enabled {
			return errors.New("minio export is disabled (set export.minio.enabled or MINIO_ENDPOINT)")
		}
		uploader, err := export.NewUploader(cfg.Export.MinIO)
		if err != nil {
			return err
		}
		key, err := uploader.Upload(ctx, run)
		if err != nil {
			return err
		}
		logger.Info("uploaded run snapshot",
			zap.Int64("run_id", run.ID),
			zap.String("bucket", cfg.Export.MinIO.Bucket),
			zap.String("key", key))
		if out == "" {
			return nil
		}
	}

	data, err := export.Snapshot(run)
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote run %d to %s\n", run.ID, out)
	return nil
}

// loadRun returns run id, or the most recent run when id is zero.
func loadRun(ctx context.Context, db store.Store, id int64) (*store.Run, error) {
	if id > 0 {
		return db.GetRun(ctx, id)
	}
	runs, err := db.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, store.ErrNotFound
	}
	return db.GetRun(ctx, runs[0].ID)
}

func buildServer(cfg *config.Config, db store.Store, engine *rank.Engine, port int, logger *zap.Logger) *server.Server {
	if port == 0 {
		port = cfg.Server.Port
	}
	defaults := server.Defaults{Search: cfg.Search, Prefs: cfg.Prefs, Weights: cfg.Weights}
	return server.New(engine, db, defaults, port, logger)
}

func runServe(port int) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := buildServer(cfg, db, buildEngine(cfg, logger), port, logger)
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := buildEngine(cfg, logger)
	alertMgr := buildAlertManager(cfg)
	if !alertMgr.HasNotifiers() {
		logger.Warn("no alert notifiers configured, top changes will only be logged")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	watch := scheduler.Watch{Search: cfg.Search, Prefs: cfg.Prefs, Weights: cfg.Weights}
	sched := scheduler.New(engine, db, alertMgr, watch, cfg.Schedule.ParseWatchInterval(), logger)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler error", zap.Error(err))
		}
	}()

	srv := buildServer(cfg, db, engine, port, logger)
	err = srv.ListenAndServe(ctx)
	logger.Info("shutting down")
	return err
}

func runCoords() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	table := geo.NewTable(cfg.Coordinates)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tLAT\tLON")
	for _, code := range table.Codes() {
		c, _ := table.Lookup(code)
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\n", code, c.Lat, c.Lon)
	}
	return w.Flush()
}
