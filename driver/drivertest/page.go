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

// Package drivertest provides an in-memory driver.Page for unit tests. Element
// lookups are answered from a table of canned elements; scripts run in a goja
// VM whose global object stands in for the page's window.
package drivertest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/ttbt-io/mapcheck/driver"
)

// Element is a canned DOM element.
type Element struct {
	Text    string
	Value   string
	Hidden  bool
	Box     driver.Box
	Clicks  int
	OnClick func()
	OnKey   func(key string)
}

func (e *Element) box() driver.Box {
	if e.Box.Width == 0 && e.Box.Height == 0 {
		return driver.Box{Width: 100, Height: 20}
	}
	return e.Box
}

// Page implements driver.Page.
type Page struct {
	VM *goja.Runtime

	TitleText string
	URL       string
	// Actions records every input action in order, e.g. "click .zoom-in[0]",
	// "key Escape", "fill input[0]=焼津駅".
	Actions []string

	OnNavigate    func(url string)
	OnDrag        func(from, to driver.Point)
	OnDoubleClick func(at driver.Point)

	ScreenshotData []byte
	ScreenshotErr  error
	CloseErr       error
	Closed         bool
	CloseCalls     int

	PollInterval time.Duration

	elements map[driver.Selector][]*Element
}

var _ driver.Page = (*Page)(nil)

// New returns an empty page. Its VM exposes window (the global object) and a
// document whose querySelector returns window.__canvas.
func New() *Page {
	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	if _, err := vm.RunString(`var document = {querySelector: function(s) { return window.__canvas || null; }};`); err != nil {
		panic(err)
	}
	return &Page{
		VM:             vm,
		ScreenshotData: []byte("\x89PNG\r\n\x1a\n"),
		PollInterval:   5 * time.Millisecond,
		elements:       make(map[driver.Selector][]*Element),
	}
}

// Add appends elements matched by sel.
func (p *Page) Add(sel driver.Selector, els ...*Element) {
	p.elements[sel] = append(p.elements[sel], els...)
}

// Remove drops every element matched by sel.
func (p *Page) Remove(sel driver.Selector) {
	delete(p.elements, sel)
}

// MustRun evaluates JavaScript source in the page's VM.
func (p *Page) MustRun(tb testing.TB, src string) goja.Value {
	tb.Helper()
	v, err := p.VM.RunString(src)
	if err != nil {
		tb.Fatalf("script failed: %v\n%s", err, src)
	}
	return v
}

func (p *Page) record(format string, args ...any) {
	p.Actions = append(p.Actions, fmt.Sprintf(format, args...))
}

func (p *Page) check(ctx context.Context) error {
	if p.Closed {
		return driver.ErrPageClosed
	}
	return ctx.Err()
}

func (p *Page) lookup(sel driver.Selector, nth int) *Element {
	els := p.elements[sel]
	if nth < 0 || nth >= len(els) {
		return nil
	}
	return els[nth]
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.URL = url
	p.record("navigate %s", url)
	if p.OnNavigate != nil {
		p.OnNavigate(url)
	}
	return nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	return p.TitleText, p.check(ctx)
}

func (p *Page) Count(ctx context.Context, sel driver.Selector) (int, error) {
	return len(p.elements[sel]), p.check(ctx)
}

func (p *Page) IsVisible(ctx context.Context, sel driver.Selector, nth int) (bool, error) {
	if err := p.check(ctx); err != nil {
		return false, err
	}
	el := p.lookup(sel, nth)
	return el != nil && !el.Hidden, nil
}

func (p *Page) WaitVisible(ctx context.Context, sel driver.Selector, nth int, timeout time.Duration) (bool, error) {
	return p.IsVisible(ctx, sel, nth)
}

func (p *Page) Click(ctx context.Context, sel driver.Selector, nth int) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	el := p.lookup(sel, nth)
	if el == nil || el.Hidden {
		return fmt.Errorf("click %s[%d]: %w", sel, nth, driver.ErrNoElement)
	}
	el.Clicks++
	p.record("click %s[%d]", sel, nth)
	if el.OnClick != nil {
		el.OnClick()
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, sel driver.Selector, nth int, value string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	el := p.lookup(sel, nth)
	if el == nil {
		return fmt.Errorf("fill %s[%d]: %w", sel, nth, driver.ErrNoElement)
	}
	el.Value = value
	p.record("fill %s[%d]=%s", sel, nth, value)
	return nil
}

func (p *Page) Press(ctx context.Context, sel driver.Selector, nth int, key string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	el := p.lookup(sel, nth)
	if el == nil {
		return fmt.Errorf("press %s[%d]: %w", sel, nth, driver.ErrNoElement)
	}
	p.record("press %s[%d] %s", sel, nth, key)
	if el.OnKey != nil {
		el.OnKey(key)
	}
	return nil
}

func (p *Page) TextContent(ctx context.Context, sel driver.Selector, nth int) (string, error) {
	if err := p.check(ctx); err != nil {
		return "", err
	}
	if el := p.lookup(sel, nth); el != nil {
		return el.Text, nil
	}
	return "", nil
}

func (p *Page) AllTextContents(ctx context.Context, sel driver.Selector) ([]string, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	var texts []string
	for _, el := range p.elements[sel] {
		texts = append(texts, el.Text)
	}
	return texts, nil
}

func (p *Page) BoundingBox(ctx context.Context, sel driver.Selector, nth int) (*driver.Box, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	el := p.lookup(sel, nth)
	if el == nil || el.Hidden {
		return nil, nil
	}
	b := el.box()
	return &b, nil
}

func (p *Page) Keyboard(ctx context.Context, key string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("key %s", key)
	return nil
}

func (p *Page) MouseDrag(ctx context.Context, from, to driver.Point, steps int) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("drag %g,%g->%g,%g", from.X, from.Y, to.X, to.Y)
	if p.OnDrag != nil {
		p.OnDrag(from, to)
	}
	return nil
}

func (p *Page) MouseDoubleClick(ctx context.Context, at driver.Point) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.record("dblclick %g,%g", at.X, at.Y)
	if p.OnDoubleClick != nil {
		p.OnDoubleClick(at)
	}
	return nil
}

func (p *Page) eval(fn string, args []any) (goja.Value, error) {
	expr, err := driver.CallExpression(fn, args)
	if err != nil {
		return nil, err
	}
	return p.VM.RunString(expr)
}

func (p *Page) Evaluate(ctx context.Context, fn string, args []any, out any) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	expr, err := driver.CallExpression(fn, args)
	if err != nil {
		return err
	}
	// JSON.stringify mirrors the by-value result transfer of the real page.
	v, err := p.VM.RunString("JSON.stringify(" + expr + ")")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data := "null"
	if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		data = v.String()
	}
	return json.Unmarshal([]byte(data), out)
}

func (p *Page) Poll(ctx context.Context, fn string, args []any, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := p.check(ctx); err != nil {
			return err
		}
		v, err := p.eval(fn, args)
		if err != nil {
			return err
		}
		if v != nil && v.ToBoolean() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", driver.ErrPollTimeout, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.PollInterval):
		}
	}
}

func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.record("screenshot full=%t", fullPage)
	return p.ScreenshotData, nil
}

func (p *Page) Close(ctx context.Context) error {
	p.CloseCalls++
	if p.Closed {
		return p.CloseErr
	}
	p.Closed = true
	return p.CloseErr
}
