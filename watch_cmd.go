package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/offlinekit/internal/workerlink"
	"github.com/dgnsrekt/offlinekit/ui"
	"github.com/dgnsrekt/offlinekit/worker"
)

const connectivityInterval = 5 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch connectivity, worker updates and caches",
	Long: paragraph(fmt.Sprintf("\n%s the page for connectivity changes and worker updates, keeping the caches swept while it runs.",
		keyword("Watch"))),
	Example: paragraph("offlinekit watch\nOFFLINEKIT_MODE=production offlinekit watch"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWatch(cmd.Context())
	},
}

func runWatch(parent context.Context) error {
	s, err := openSubsystem()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg := s.build
	cfg.EnableMouse = mouse
	if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		cfg.AltScreen = false
	}

	logger := log.Default().WithPrefix("worker")

	page, err := worker.NewStaticPage(s.workerCfg.PageURL, func() {
		log.Info("Page reloaded")
	})
	if err != nil {
		return err
	}
	page.MarkLoaded()

	var (
		link    *workerlink.Link
		channel worker.Channel
	)
	if s.workerCfg.LinkURL != "" {
		link, err = workerlink.Dial(ctx, s.workerCfg.LinkURL, log.Default().WithPrefix("link"))
		if err != nil {
			return err
		}
		defer func() { _ = link.Close() }()
		channel = link
	}

	var hostOpts []worker.HostOption
	if s.workerCfg.AutoActivate || link == nil {
		hostOpts = append(hostOpts, worker.WithAutoActivate())
	}
	host := worker.NewHost(channel, logger, hostOpts...)

	registrar := worker.NewRegistrar(host, page, s.probe, logger)
	defer registrar.Close()

	reg, err := registrar.Register(ctx, s.workerCfg.ScriptURL, worker.Callbacks{
		OnSuccess: func(worker.Registration) { log.Info("Content is cached for offline use") },
		OnUpdate:  func(worker.Registration) { log.Info("New content is available") },
	})
	switch {
	case worker.IsOffline(err):
		log.Info("No internet connection found. App is running in offline mode.")
	case err != nil:
		log.Warn("Worker registration failed", "err", err)
	}

	// prog is assigned before anything that can call send is started
	var prog *tea.Program
	send := func(msg tea.Msg) { prog.Send(msg) }

	coordinator := worker.NewUpdateCoordinator(reg, host, page, send, logger)
	coordinator.RemindAfter = s.workerCfg.RemindAfter
	defer coordinator.Close()

	online := s.probe.Reachable(ctx, s.workerCfg.PageURL)
	prog = ui.NewProgram(cfg, ui.Deps{
		Registry:   s.caches,
		Controller: s.ctrl,
		Update:     coordinator,
		Online:     online,
	})

	if err := s.ctrl.Initialize(ctx); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, s.promRegistry)
	}

	if link != nil {
		go func() {
			err := link.Listen(ctx, func(m worker.Message) {
				handled, err := host.Apply(m)
				if err != nil {
					log.Warn("Could not apply worker message", "type", m.Type(), "err", err)
				}
				if !handled {
					send(m)
				}
			})
			if err != nil && ctx.Err() == nil {
				log.Warn("Worker link closed", "err", err)
			}
		}()
	}

	go func() {
		last := online
		s.probe.Watch(ctx, s.workerCfg.PageURL, connectivityInterval, func(now bool) {
			if now == last {
				return
			}
			last = now
			if now {
				send(ui.OnlineMsg{})
			} else {
				send(ui.OfflineMsg{})
			}
		})
	}()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Debug("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("Metrics server stopped", "err", err)
	}
}
