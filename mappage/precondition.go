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

package mappage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/driver"
	"github.com/ttbt-io/mapcheck/wait"
)

// DismissOverlays closes notices and terms dialogs that block the map. Each
// overlay-close variant gets a short chance to appear and is clicked if it
// does; Escape is pressed last for modals without a close button. It never
// fails: an absent overlay is the normal case and any other problem is only
// logged.
func (m *MapPage) DismissOverlays(ctx context.Context) {
	for _, sel := range m.catalog[OverlayClose] {
		vis, err := m.page.WaitVisible(ctx, sel, 0, m.delays.OverlayCheck)
		if err != nil {
			m.logger.Debug("overlay check failed", zap.Stringer("selector", sel), zap.Error(err))
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if !vis {
			continue
		}
		if err := m.page.Click(ctx, sel, 0); err != nil {
			if !errors.Is(err, driver.ErrNoElement) {
				m.logger.Debug("overlay click failed", zap.Stringer("selector", sel), zap.Error(err))
			}
			continue
		}
		m.logger.Info("dismissed overlay", zap.Stringer("selector", sel))
		if err := wait.Sleep(ctx, m.delays.OverlayClick); err != nil {
			return
		}
	}
	if err := m.page.Keyboard(ctx, driver.KeyEscape); err != nil {
		m.logger.Debug("escape failed", zap.Error(err))
		return
	}
	_ = wait.Sleep(ctx, m.delays.Escape)
}
