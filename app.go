package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/offlinekit/internal/cache"
	"github.com/dgnsrekt/offlinekit/internal/probe"
	"github.com/dgnsrekt/offlinekit/internal/storage"
	"github.com/dgnsrekt/offlinekit/ui"
	"github.com/dgnsrekt/offlinekit/worker"
)

// subsystem is the wired cache and worker stack shared by the commands.
type subsystem struct {
	build     ui.Config
	cacheCfg  cache.Config
	workerCfg worker.Config

	promRegistry *prometheus.Registry
	metrics      *cache.Metrics

	store   *storage.SQLite
	session *storage.Memory
	caches  *cache.Registry

	timings *cache.TimingFeed
	hints   *cache.HintList
	probe   *probe.Client
	ctrl    *cache.Controller
}

func openSubsystem() (*subsystem, error) {
	build, err := env.ParseAs[ui.Config]()
	if err != nil {
		return nil, fmt.Errorf("error parsing build config: %w", err)
	}

	cacheCfg, err := cache.LoadConfigFromViper()
	if err != nil {
		return nil, err
	}
	workerCfg, err := worker.LoadConfigFromViper()
	if err != nil {
		return nil, err
	}

	if build.Production() {
		cacheCfg.Production = true
	}
	if !viper.IsSet("cache.observe.enabled") {
		cacheCfg.ObserveHitRate = !cacheCfg.Production
	}
	if cacheCfg.BaseURL == "" {
		cacheCfg.BaseURL = publicBaseURL(workerCfg.PageURL, build.PublicURL)
	}
	if cacheCfg.StorePath == "" {
		if cacheCfg.StorePath, err = defaultStorePath(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(cacheCfg.StorePath), 0o700); err != nil {
		return nil, fmt.Errorf("unable to create store directory: %w", err)
	}
	store, err := storage.OpenSQLite(cacheCfg.StorePath, storage.SQLiteOptions{
		Quota:            cacheCfg.StoreQuota,
		Compress:         cacheCfg.Compress,
		CompressionLevel: cacheCfg.CompressionLevel,
	})
	if err != nil {
		return nil, err
	}

	s := &subsystem{
		build:        build,
		cacheCfg:     cacheCfg,
		workerCfg:    workerCfg,
		promRegistry: prometheus.NewRegistry(),
		store:        store,
		session:      storage.NewMemory(cacheCfg.SessionQuota),
		timings:      cache.NewTimingFeed(),
		hints:        &cache.HintList{},
	}
	s.metrics = cache.NewMetrics(s.promRegistry)
	s.caches = cache.NewRegistry(cacheCfg.Bounded, s.store, s.session,
		log.Default().WithPrefix("cache"), s.metrics)

	opts := []probe.Option{
		probe.WithTimeout(workerCfg.CheckTimeout),
		probe.WithLogger(log.Default().WithPrefix("probe")),
		probe.WithTimingHook(func(t probe.Timing) {
			s.timings.Publish(cache.ResourceTiming{
				Name:         t.URL,
				TransferSize: t.TransferSize,
				DecodedSize:  t.DecodedSize,
			})
		}),
	}
	if static, ok := s.caches.Bounded(cache.StaticCache); ok {
		opts = append(opts, probe.WithBodyCache(static))
	}
	s.probe = probe.New(opts...)

	s.ctrl = cache.NewController(cacheCfg, cache.Deps{
		Durables: s.caches.Durables(),
		Pruners:  s.caches.Pruners(),
		Checker:  s.probe,
		Hints:    s.hints,
		Timings:  s.timings,
		Logger:   log.Default().WithPrefix("lifecycle"),
		Metrics:  s.metrics,
	})

	log.Debug("Opened subsystem",
		"production", cacheCfg.Production,
		"base", cacheCfg.BaseURL,
		"store", cacheCfg.StorePath,
	)
	return s, nil
}

func (s *subsystem) Close() error {
	s.ctrl.Wait()
	return s.store.Close()
}

// publicBaseURL joins the page origin with the public path. An absolute
// public URL wins.
func publicBaseURL(pageURL, publicURL string) string {
	if u, err := url.Parse(publicURL); err == nil && u.IsAbs() {
		return strings.TrimRight(publicURL, "/")
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return strings.TrimRight(publicURL, "/")
	}
	origin := u.Scheme + "://" + u.Host
	if publicURL == "" {
		return origin
	}
	return origin + "/" + strings.Trim(publicURL, "/")
}

func defaultStorePath() (string, error) {
	p, err := gap.NewScope(gap.User, "offlinekit").DataPath("cache.db")
	if err != nil {
		return "", fmt.Errorf("could not find data directory: %w", err)
	}
	return p, nil
}
