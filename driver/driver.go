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

// Package driver defines the narrow contract the map checks need from a
// browser automation engine, and implements it on top of chromedp.
package driver

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrPollTimeout is returned by Page.Poll when the predicate never became
	// truthy within the allotted time.
	ErrPollTimeout = errors.New("polling timed out")
	// ErrPageClosed is returned by operations on a page that was closed.
	ErrPageClosed = errors.New("page closed")
)

// Keys understood by Page.Press and Page.Keyboard.
const (
	KeyEnter  = "Enter"
	KeyEscape = "Escape"
)

// Selector identifies a set of elements in document order.
//
// CSS narrows by CSS selector (all elements when empty). HasText keeps only
// elements whose text content contains the given string. Text keeps only the
// innermost elements whose trimmed text content equals the given string.
type Selector struct {
	CSS     string `json:"css,omitempty" yaml:"css,omitempty"`
	HasText string `json:"hasText,omitempty" yaml:"hasText,omitempty"`
	Text    string `json:"text,omitempty" yaml:"text,omitempty"`
}

// CSS returns a selector matching the CSS expression.
func CSS(expr string) Selector {
	return Selector{CSS: expr}
}

// Text returns a selector matching elements whose visible text is exactly t.
func Text(t string) Selector {
	return Selector{Text: t}
}

// IsZero reports whether the selector has no constraints at all.
func (s Selector) IsZero() bool {
	return s.CSS == "" && s.HasText == "" && s.Text == ""
}

func (s Selector) String() string {
	var sb strings.Builder
	sb.WriteString(s.CSS)
	if s.HasText != "" {
		sb.WriteString(`:has-text("` + s.HasText + `")`)
	}
	if s.Text != "" {
		if sb.Len() > 0 {
			sb.WriteString(" >> ")
		}
		sb.WriteString(`text="` + s.Text + `"`)
	}
	return sb.String()
}

// Point is a position in CSS pixels relative to the viewport.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an element's bounding rectangle in CSS pixels.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the middle of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Page is one browser tab. Element operations address the nth element (0
// based, document order) matched by a selector. Operations never wait for an
// element to appear unless their name says so; a missing element is reported
// through the return values rather than an error wherever that is possible.
//
// Implementations are not safe for concurrent use; a scenario drives its page
// from a single goroutine.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)

	Count(ctx context.Context, sel Selector) (int, error)
	IsVisible(ctx context.Context, sel Selector, nth int) (bool, error)
	// WaitVisible waits up to timeout for the element to become visible. It
	// returns false, without an error, when the deadline passes.
	WaitVisible(ctx context.Context, sel Selector, nth int, timeout time.Duration) (bool, error)
	Click(ctx context.Context, sel Selector, nth int) error
	Fill(ctx context.Context, sel Selector, nth int, value string) error
	Press(ctx context.Context, sel Selector, nth int, key string) error
	TextContent(ctx context.Context, sel Selector, nth int) (string, error)
	AllTextContents(ctx context.Context, sel Selector) ([]string, error)
	// BoundingBox returns nil when the element does not exist or is not
	// rendered.
	BoundingBox(ctx context.Context, sel Selector, nth int) (*Box, error)

	Keyboard(ctx context.Context, key string) error
	MouseDrag(ctx context.Context, from, to Point, steps int) error
	MouseDoubleClick(ctx context.Context, at Point) error

	// Evaluate calls the JavaScript function source fn in the page with args
	// marshaled as JSON and unmarshals its JSON result into out (which may be
	// nil).
	Evaluate(ctx context.Context, fn string, args []any, out any) error
	// Poll calls fn with args until it returns a truthy value. It returns an
	// error wrapping ErrPollTimeout when timeout elapses first.
	Poll(ctx context.Context, fn string, args []any, timeout time.Duration) error

	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Close(ctx context.Context) error
}
