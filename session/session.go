// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session owns the browser resources of one scenario: an isolated
// browser context with its emulation settings and a single page.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/config"
	"github.com/ttbt-io/mapcheck/driver"
)

// ErrReleased is returned when a released session is used.
var ErrReleased = errors.New("session released")

// releaseTimeout bounds each teardown step.
const releaseTimeout = 10 * time.Second

// State describes the environment a session was created with. It does not
// change for the life of the session.
type State struct {
	ID          uuid.UUID
	Headless    bool
	Viewport    config.Viewport
	Locale      string
	Geolocation config.Geolocation
	Permissions []string
}

// step is one teardown action. Steps run in order and each runs at most once.
type step struct {
	name string
	fn   func(ctx context.Context) error
	done bool
}

// Session is one page in its own browser context.
type Session struct {
	state  State
	page   driver.Page
	logger *zap.Logger

	mu          sync.Mutex
	steps       []*step
	stepTimeout time.Duration
	released    bool
}

// Option configures Acquire.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newState(cfg config.Browser) State {
	return State{
		ID:          uuid.New(),
		Headless:    cfg.Headless,
		Viewport:    cfg.Viewport,
		Locale:      cfg.Locale,
		Geolocation: cfg.Geolocation,
		Permissions: slices.Clone(cfg.Permissions),
	}
}

func newSession(state State, page driver.Page, logger *zap.Logger, steps ...*step) *Session {
	return &Session{
		state:       state,
		page:        page,
		logger:      logger,
		steps:       steps,
		stepTimeout: releaseTimeout,
	}
}

func allocatorOptions(cfg config.Browser) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height),
		chromedp.Flag("lang", cfg.Locale),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Acquire starts (or attaches to) a browser, creates a fresh browser context
// and opens a page in it with the configured viewport, locale, geolocation
// and permissions. Whatever was created before a failure is released again.
func Acquire(ctx context.Context, cfg config.Browser, opts ...Option) (*Session, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	state := newState(cfg)
	logger := o.logger.Named("session").With(zap.Stringer("session", state.ID))
	sugar := logger.Sugar()

	// The browser lives until Release, not until the caller's context ends.
	parent := context.WithoutCancel(ctx)
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, allocatorOptions(cfg)...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	browserStep := &step{name: "browser", fn: func(context.Context) error {
		defer allocCancel()
		defer browserCancel()
		// With a remote allocator this closes our first tab and leaves the
		// browser itself running.
		return chromedp.Cancel(browserCtx)
	}}
	fail := func(err error, steps ...*step) (*Session, error) {
		s := newSession(state, nil, logger, append(steps, browserStep)...)
		if rerr := s.Release(ctx); rerr != nil {
			logger.Warn("cleanup after failed acquire", zap.Error(rerr))
		}
		return nil, err
	}

	if err := chromedp.Run(browserCtx); err != nil {
		return fail(fmt.Errorf("start browser: %w", err))
	}
	brw := chromedp.FromContext(browserCtx).Browser

	bcID, err := target.CreateBrowserContext().WithDisposeOnDetach(true).Do(cdp.WithExecutor(ctx, brw))
	if err != nil {
		return fail(fmt.Errorf("create browser context: %w", err))
	}
	contextStep := &step{name: "context", fn: func(ctx context.Context) error {
		return target.DisposeBrowserContext(bcID).Do(cdp.WithExecutor(ctx, brw))
	}}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithExistingBrowserContext(bcID))
	page := driver.NewChromePage(tabCtx, tabCancel,
		driver.WithInteractionDelay(cfg.InteractionDelay),
		driver.WithLogger(logger),
	)
	pageStep := &step{name: "page", fn: page.Close}

	perms := make([]browser.PermissionType, len(cfg.Permissions))
	for i, p := range cfg.Permissions {
		perms[i] = browser.PermissionType(p)
	}
	err = chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(int64(cfg.Viewport.Width), int64(cfg.Viewport.Height), 1, false),
		emulation.SetLocaleOverride().WithLocale(cfg.Locale),
		emulation.SetGeolocationOverride().
			WithLatitude(cfg.Geolocation.Latitude).
			WithLongitude(cfg.Geolocation.Longitude).
			WithAccuracy(cfg.Geolocation.Accuracy),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(perms) == 0 {
				return nil
			}
			exec := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser)
			return browser.GrantPermissions(perms).WithBrowserContextID(bcID).Do(exec)
		}),
	)
	if err != nil {
		return fail(fmt.Errorf("configure page: %w", err), pageStep, contextStep)
	}

	logger.Info("session acquired",
		zap.Bool("headless", cfg.Headless),
		zap.String("remote", cfg.RemoteURL),
		zap.String("browserContext", string(bcID)),
	)
	return newSession(state, page, logger, pageStep, contextStep, browserStep), nil
}

// Attach wraps a page the caller already opened. The session records cfg as
// its state but applies nothing to the page; Release only closes it.
func Attach(page driver.Page, cfg config.Browser, opts ...Option) *Session {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	state := newState(cfg)
	logger := o.logger.Named("session").With(zap.Stringer("session", state.ID))
	return newSession(state, page, logger, &step{name: "page", fn: page.Close})
}

// State returns the session's environment.
func (s *Session) State() State {
	st := s.state
	st.Permissions = slices.Clone(st.Permissions)
	return st
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.state.ID.String()
}

// Page returns the session's page.
func (s *Session) Page() driver.Page {
	return s.page
}

// Logger returns the session's logger.
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Released reports whether Release has been called.
func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release closes the page, then the browser context, then the browser. Every
// step is attempted even when an earlier one failed; the combined error is
// informational only and has already been logged. Steps that ran are not
// repeated, so calling Release again is harmless.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true

	ctx = context.WithoutCancel(ctx)
	var errs error
	for _, st := range s.steps {
		if st.done {
			continue
		}
		st.done = true
		if err := runStep(ctx, st, s.stepTimeout); err != nil {
			s.logger.Warn("release step failed", zap.String("step", st.name), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		s.logger.Debug("released", zap.String("step", st.name))
	}
	return errs
}

func runStep(ctx context.Context, st *step, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return st.fn(ctx)
}
