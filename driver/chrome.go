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

package driver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// ErrNoElement is returned by actions addressed at an element that does not
// exist or is not rendered.
var ErrNoElement = errors.New("no such element")

const pollInterval = 100 * time.Millisecond

// ChromePage implements Page for a chromedp tab.
type ChromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	delay  time.Duration
	logger *zap.Logger
	closed atomic.Bool
}

// PageOption configures a ChromePage.
type PageOption func(*ChromePage)

// WithInteractionDelay pauses before every input action so that a human can
// follow along when the browser is headed.
func WithInteractionDelay(d time.Duration) PageOption {
	return func(p *ChromePage) { p.delay = d }
}

// WithLogger sets the logger used for action tracing.
func WithLogger(l *zap.Logger) PageOption {
	return func(p *ChromePage) { p.logger = l }
}

// NewChromePage wraps a chromedp tab context. cancel must be the cancel
// function returned by chromedp.NewContext for tabCtx.
func NewChromePage(tabCtx context.Context, cancel context.CancelFunc, opts ...PageOption) *ChromePage {
	p := &ChromePage{ctx: tabCtx, cancel: cancel, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("page")
	return p
}

// Context returns the chromedp tab context, for callers that need raw
// chromedp actions.
func (p *ChromePage) Context() context.Context {
	return p.ctx
}

// run executes actions on the tab, bounded by the caller's deadline and
// cancellation as well as the tab's own lifetime.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.closed.Load() {
		return ErrPageClosed
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if d, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, d)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *ChromePage) pause() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if p.delay <= 0 {
			return nil
		}
		return chromedp.Sleep(p.delay).Do(ctx)
	})
}

func (p *ChromePage) element(sel Selector, nth int, op string, arg any, out any) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		expr, err := CallExpression(elementFn, []any{sel, nth, op, arg})
		if err != nil {
			return err
		}
		return chromedp.Evaluate(expr, out).Do(ctx)
	})
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("navigate", zap.String("url", url))
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, chromedp.Title(&title))
	return title, err
}

func (p *ChromePage) Count(ctx context.Context, sel Selector) (int, error) {
	var n int
	err := p.run(ctx, p.element(sel, 0, "count", nil, &n))
	return n, err
}

func (p *ChromePage) IsVisible(ctx context.Context, sel Selector, nth int) (bool, error) {
	var ok bool
	err := p.run(ctx, p.element(sel, nth, "visible", nil, &ok))
	return ok, err
}

func (p *ChromePage) WaitVisible(ctx context.Context, sel Selector, nth int, timeout time.Duration) (bool, error) {
	err := p.run(ctx, chromedp.PollFunction(elementFn, nil,
		chromedp.WithPollingArgs(sel, nth, "visible", nil),
		chromedp.WithPollingInterval(pollInterval),
		chromedp.WithPollingTimeout(timeout),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return false, nil
	}
	return err == nil, err
}

func (p *ChromePage) box(ctx context.Context, sel Selector, nth int, scroll bool) (*Box, error) {
	var b *Box
	if err := p.run(ctx, p.element(sel, nth, "box", scroll, &b)); err != nil {
		return nil, err
	}
	return b, nil
}

func (p *ChromePage) Click(ctx context.Context, sel Selector, nth int) error {
	b, err := p.box(ctx, sel, nth, true)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("click %s[%d]: %w", sel, nth, ErrNoElement)
	}
	p.logger.Debug("click", zap.Stringer("selector", sel), zap.Int("nth", nth))
	return p.run(ctx, p.pause(), clickAt(b.Center(), 1))
}

func (p *ChromePage) focus(ctx context.Context, sel Selector, nth int, clear bool) error {
	var arg any
	if clear {
		arg = "clear"
	}
	var ok bool
	if err := p.run(ctx, p.element(sel, nth, "focus", arg, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("focus %s[%d]: %w", sel, nth, ErrNoElement)
	}
	return nil
}

func (p *ChromePage) Fill(ctx context.Context, sel Selector, nth int, value string) error {
	if err := p.focus(ctx, sel, nth, true); err != nil {
		return err
	}
	p.logger.Debug("fill", zap.Stringer("selector", sel), zap.Int("nth", nth))
	if value == "" {
		return nil
	}
	return p.run(ctx, p.pause(), input.InsertText(value))
}

func (p *ChromePage) Press(ctx context.Context, sel Selector, nth int, key string) error {
	if err := p.focus(ctx, sel, nth, false); err != nil {
		return err
	}
	return p.Keyboard(ctx, key)
}

func (p *ChromePage) TextContent(ctx context.Context, sel Selector, nth int) (string, error) {
	var s string
	err := p.run(ctx, p.element(sel, nth, "text", nil, &s))
	return s, err
}

func (p *ChromePage) AllTextContents(ctx context.Context, sel Selector) ([]string, error) {
	var texts []string
	err := p.run(ctx, p.element(sel, 0, "texts", nil, &texts))
	return texts, err
}

func (p *ChromePage) BoundingBox(ctx context.Context, sel Selector, nth int) (*Box, error) {
	return p.box(ctx, sel, nth, false)
}

func keyOf(key string) string {
	switch key {
	case KeyEnter:
		return kb.Enter
	case KeyEscape:
		return kb.Escape
	}
	return key
}

func (p *ChromePage) Keyboard(ctx context.Context, key string) error {
	p.logger.Debug("key", zap.String("key", key))
	return p.run(ctx, p.pause(), chromedp.KeyEvent(keyOf(key)))
}

func (p *ChromePage) MouseDrag(ctx context.Context, from, to Point, steps int) error {
	if steps < 1 {
		steps = 1
	}
	p.logger.Debug("drag", zap.Float64("fromX", from.X), zap.Float64("fromY", from.Y), zap.Float64("toX", to.X), zap.Float64("toY", to.Y))
	return p.run(ctx, p.pause(), chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, from.X, from.Y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, from.X, from.Y).
			WithButton(input.Left).WithButtons(1).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		for i := 1; i <= steps; i++ {
			f := float64(i) / float64(steps)
			x := from.X + (to.X-from.X)*f
			y := from.Y + (to.Y-from.Y)*f
			if err := input.DispatchMouseEvent(input.MouseMoved, x, y).
				WithButton(input.Left).WithButtons(1).Do(ctx); err != nil {
				return err
			}
		}
		return input.DispatchMouseEvent(input.MouseReleased, to.X, to.Y).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	}))
}

func (p *ChromePage) MouseDoubleClick(ctx context.Context, at Point) error {
	return p.run(ctx, p.pause(), clickAt(at, 2))
}

func clickAt(pt Point, count int64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y).Do(ctx); err != nil {
			return err
		}
		for i := int64(1); i <= count; i++ {
			if err := input.DispatchMouseEvent(input.MousePressed, pt.X, pt.Y).
				WithButton(input.Left).WithButtons(1).WithClickCount(i).Do(ctx); err != nil {
				return err
			}
			if err := input.DispatchMouseEvent(input.MouseReleased, pt.X, pt.Y).
				WithButton(input.Left).WithClickCount(i).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (p *ChromePage) Evaluate(ctx context.Context, fn string, args []any, out any) error {
	expr, err := CallExpression(fn, args)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.Evaluate(expr, out, awaitPromise))
}

func (p *ChromePage) Poll(ctx context.Context, fn string, args []any, timeout time.Duration) error {
	err := p.run(ctx, chromedp.PollFunction(fn, nil,
		chromedp.WithPollingArgs(args...),
		chromedp.WithPollingInterval(pollInterval),
		chromedp.WithPollingTimeout(timeout),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return fmt.Errorf("%w after %v", ErrPollTimeout, timeout)
	}
	return err
}

func (p *ChromePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := p.run(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab. Closing an already closed page is a no-op.
func (p *ChromePage) Close(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}
	defer p.cancel()
	return chromedp.Cancel(p.ctx)
}
