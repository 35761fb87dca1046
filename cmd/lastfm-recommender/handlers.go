package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/s166harth/lastfm-recommender/internal/config"
	"github.com/s166harth/lastfm-recommender/internal/logger"
	"github.com/s166harth/lastfm-recommender/internal/scheduler"
	"github.com/s166harth/lastfm-recommender/internal/store"
	"github.com/s166harth/lastfm-recommender/pkg/export"
	"github.com/s166harth/lastfm-recommender/pkg/notify"
	"github.com/s166harth/lastfm-recommender/pkg/recommend"
	"github.com/s166harth/lastfm-recommender/pkg/scrobble"
	"github.com/s166harth/lastfm-recommender/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildSources(cfg *config.Config) []scrobble.Source {
	var sources []scrobble.Source

	if cfg.Sources.LastFM.Enabled && cfg.Sources.LastFM.APIKey != "" && cfg.Sources.LastFM.Username != "" {
		sources = append(sources, scrobble.NewLastFM(cfg.Sources.LastFM.APIKey, cfg.Sources.LastFM.Username))
	}
	if cfg.Sources.Feeds.Enabled && len(cfg.Sources.Feeds.Feeds) > 0 {
		feeds := make([]scrobble.Feed, len(cfg.Sources.Feeds.Feeds))
		for i, f := range cfg.Sources.Feeds.Feeds {
			feeds[i] = scrobble.Feed{Name: f.Name, URL: f.URL}
		}
		sources = append(sources, scrobble.NewFeedSource(feeds))
	}
	if cfg.Sources.Import.Enabled && len(cfg.Sources.Import.Paths) > 0 {
		sources = append(sources, scrobble.NewFileSource(cfg.Sources.Import.Paths))
	}

	return sources
}

func buildEngine(cfg *config.Config, db store.Store, log *logger.Logger) (*recommend.Engine, error) {
	loc, err := cfg.Window.Location()
	if err != nil {
		return nil, err
	}
	filter := scrobble.NewFilter(cfg.Filter.ExcludeArtists, cfg.Filter.ExcludeKeywords)
	return recommend.NewEngine(db, filter, cfg.Weights, cfg.Window.Days, loc, log.Entry), nil
}

func buildDigestManager(cfg *config.Config) *notify.Manager {
	var notifiers []notify.Notifier

	if cfg.Digest.Slack.Enabled && cfg.Digest.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlack(cfg.Digest.Slack.WebhookURL))
	}
	if cfg.Digest.Discord.Enabled && cfg.Digest.Discord.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewDiscord(cfg.Digest.Discord.WebhookURL))
	}
	if cfg.Digest.Webhook.Enabled && cfg.Digest.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Digest.Webhook.URL, cfg.Digest.Webhook.Secret))
	}

	return notify.NewManager(notifiers)
}

func runFetch(filterSources []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	allSources := buildSources(cfg)
	if len(allSources) == 0 {
		return fmt.Errorf("no sources configured (set LASTFM_API_KEY and LASTFM_USERNAME, or enable feeds/import)")
	}

	// Filter to requested sources only.
	sources := allSources
	if len(filterSources) > 0 {
		wanted := make(map[string]bool)
		for _, s := range filterSources {
			wanted[strings.ToLower(strings.TrimSpace(s))] = true
		}
		sources = nil
		for _, s := range allSources {
			if wanted[string(s.Name())] {
				sources = append(sources, s)
			}
		}
		if len(sources) == 0 {
			return fmt.Errorf("no matching sources for: %s", strings.Join(filterSources, ", "))
		}
	}

	loc, err := cfg.Window.Location()
	if err != nil {
		return err
	}
	win := recommend.Trailing(cfg.Window.Days, time.Now().UTC(), loc)

	ctx := context.Background()
	total := 0

	for _, src := range sources {
		log.Infof("fetching from %s...", src.Name())
		scrobbles, err := src.Fetch(ctx, win.Start, win.End)
		if err != nil {
			log.WithError(err).Warnf("%s failed", src.Name())
			continue
		}

		if err := db.UpsertScrobbles(ctx, scrobbles); err != nil {
			log.WithError(err).Warnf("%s store failed", src.Name())
			continue
		}

		log.Infof("  %s: %d scrobbles", src.Name(), len(scrobbles))
		total += len(scrobbles)
	}

	log.Infof("total: %d scrobbles from %d sources", total, len(sources))
	return nil
}

func runRecommend(jsonOutput bool, limit, days int, xlsxPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if days > 0 {
		cfg.Window.Days = days
	}
	log := logger.New()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}

	result, err := engine.Refresh(context.Background())
	if err != nil {
		return fmt.Errorf("refresh recommendations: %w", err)
	}
	if result.Skipped > 0 {
		log.Warnf("skipped %d malformed scrobbles", result.Skipped)
	}

	if xlsxPath != "" {
		if err := export.WriteXLSX(xlsxPath, result.Recommendations); err != nil {
			return err
		}
		log.Infof("wrote %s", xlsxPath)
	}

	recs := result.Recommendations
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Println("no listening history in the window (try fetching first: lastfm-recommender fetch)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tPLAYS\tDAYS\tSONG\tARTIST")
	for _, r := range recs {
		fmt.Fprintf(w, "%d\t%.1f\t%d\t%d\t%s\t%s\n",
			r.Position, r.Score, r.PlayCount, r.UniqueDays, r.Song, r.Artist)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}
	log := logger.New()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}
	loc, err := cfg.Window.Location()
	if err != nil {
		return err
	}

	srv := server.New(db, engine, buildSources(cfg), cfg.Window.Days, loc, port, log)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}
	log := logger.New()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}
	loc, err := cfg.Window.Location()
	if err != nil {
		return err
	}

	sources := buildSources(cfg)
	digestMgr := buildDigestManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, sources, engine, digestMgr,
		cfg.Schedule.ParseFetchInterval(),
		cfg.Schedule.ParseRefreshInterval(),
		cfg.Window.Days,
		loc,
		cfg.Digest.Limit,
		log.Entry,
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("scheduler stopped")
		}
	}()

	srv := server.New(db, engine, sources, cfg.Window.Days, loc, port, log)
	go func() {
		<-ctx.Done()
		log.Info("shutting down...")
	}()

	return srv.ListenAndServe()
}
