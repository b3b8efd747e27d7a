package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/dgnsrekt/offlinekit/internal/probe"
)

// Callbacks are invoked once per installed worker.
type Callbacks struct {
	// OnSuccess runs on first install: content is now available offline.
	OnSuccess func(Registration)

	// OnUpdate runs when an update installed while another worker controls
	// the page: new content is ready but not yet active.
	OnUpdate func(Registration)
}

// Registrar registers the worker script and reports install outcomes.
type Registrar struct {
	container Container
	page      Page
	checker   ScriptChecker
	logger    *log.Logger

	checks singleflight.Group

	mu       sync.Mutex
	releases []func()
}

// NewRegistrar creates a registrar. checker is only used on local
// development hosts and may be nil elsewhere.
func NewRegistrar(container Container, page Page, checker ScriptChecker, logger *log.Logger) *Registrar {
	if logger == nil {
		logger = log.Default().WithPrefix("worker")
	}
	return &Registrar{
		container: container,
		page:      page,
		checker:   checker,
		logger:    logger,
	}
}

// Register registers scriptURL once the page has loaded. On local
// development hosts the script is validated first; an invalid script
// unregisters any stale registration and reloads the page.
func (r *Registrar) Register(ctx context.Context, scriptURL string, cb Callbacks) (Registration, error) {
	if r.container == nil || !r.container.Supported() {
		return nil, NewError(ErrUnsupported, "registrar", "register")
	}

	resolved, err := r.resolve(scriptURL)
	if err != nil {
		return nil, NewError(err, "registrar", "register").WithContext("url", scriptURL)
	}

	if err := r.page.WaitLoad(ctx); err != nil {
		return nil, NewError(err, "registrar", "wait for load")
	}

	if IsLocalhost(r.page.Hostname()) {
		if err := r.checkScript(ctx, resolved); err != nil {
			return nil, err
		}
	}

	reg, err := r.container.Register(ctx, resolved)
	if err != nil {
		r.logger.Error("error during worker registration", "url", resolved, "err", err)
		return nil, NewError(fmt.Errorf("%w: %v", ErrRegistration, err), "registrar", "register").
			WithContext("url", resolved)
	}

	if IsLocalhost(r.page.Hostname()) {
		r.logger.Info("this web app is being served cache-first by a background worker")
	}

	release := reg.OnUpdateFound(func() { r.watchInstalling(reg, cb) })
	r.mu.Lock()
	r.releases = append(r.releases, release)
	r.mu.Unlock()

	return reg, nil
}

// resolve makes scriptURL absolute against the page origin and rejects
// scripts from another origin.
func (r *Registrar) resolve(scriptURL string) (string, error) {
	base, err := url.Parse(r.page.Origin() + "/")
	if err != nil {
		return "", fmt.Errorf("parse page origin: %w", err)
	}
	ref, err := url.Parse(scriptURL)
	if err != nil {
		return "", fmt.Errorf("parse script url: %w", err)
	}
	abs := base.ResolveReference(ref)
	if !strings.EqualFold(abs.Scheme+"://"+abs.Host, r.page.Origin()) {
		return "", ErrCrossOrigin
	}
	return abs.String(), nil
}

// checkScript validates the script on a development host.
func (r *Registrar) checkScript(ctx context.Context, scriptURL string) error {
	if r.checker == nil {
		return nil
	}

	v, err, _ := r.checks.Do(scriptURL, func() (any, error) {
		return r.checker.CheckScript(ctx, scriptURL)
	})
	if err != nil {
		r.logger.Warn("no internet connection found, app is running in offline mode", "err", err)
		return NewError(ErrOffline, "registrar", "check script")
	}

	check := v.(probe.ScriptCheck)
	if check.Valid() {
		return nil
	}

	r.logger.Warn("worker script is invalid, reloading", "url", scriptURL)
	if reg, err := r.container.Registration(ctx); err == nil && reg != nil {
		if err := reg.Unregister(ctx); err != nil {
			r.logger.Debug("stale registration unregister failed", "err", err)
		}
	}
	r.page.Reload()
	return NewError(ErrInvalidScript, "registrar", "check script").WithContext("url", scriptURL)
}

// watchInstalling reports the outcome of the worker now installing.
func (r *Registrar) watchInstalling(reg Registration, cb Callbacks) {
	w := reg.Installing()
	if w == nil {
		return
	}

	var once releaser
	once.set(w.OnStateChange(func(state LifecycleState) {
		switch state {
		case StateInstalled:
			once.release()
			if r.container.Controller() != nil {
				r.logger.Info("new content is available and will be used when all tabs for this page are closed")
				if cb.OnUpdate != nil {
					cb.OnUpdate(reg)
				}
				return
			}
			r.logger.Info("content is cached for offline use")
			if cb.OnSuccess != nil {
				cb.OnSuccess(reg)
			}
		case StateRedundant:
			once.release()
		}
	}))
}

// Unregister removes the current registration. Failures are logged and
// otherwise ignored.
func (r *Registrar) Unregister(ctx context.Context) {
	if r.container == nil || !r.container.Supported() {
		return
	}
	reg, err := r.container.Registration(ctx)
	if err != nil {
		r.logger.Error("lookup registration failed", "err", err)
		return
	}
	if reg == nil {
		return
	}
	if err := reg.Unregister(ctx); err != nil {
		r.logger.Error("unregister failed", "err", err)
	}
}

// Close releases every listener attached by Register.
func (r *Registrar) Close() {
	r.mu.Lock()
	releases := r.releases
	r.releases = nil
	r.mu.Unlock()

	for _, release := range releases {
		release()
	}
}

// IsOffline reports whether err means registration was skipped because the
// network was unreachable.
func IsOffline(err error) bool {
	return errors.Is(err, ErrOffline)
}
