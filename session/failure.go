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

package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ttbt-io/mapcheck/artifacts"
)

// CaptureFailure saves a full-page screenshot of the session's page into dir
// as <sanitized scenario name>_<unix ms>.png and returns its path. Errors are
// logged as well as returned; callers go on to release the session either
// way.
func CaptureFailure(ctx context.Context, s *Session, scenario, dir string) (string, error) {
	if s.Released() {
		return "", ErrReleased
	}
	png, err := s.page.Screenshot(ctx, true)
	if err != nil {
		s.logger.Error("failure screenshot", zap.String("scenario", scenario), zap.Error(err))
		return "", fmt.Errorf("capture %q: %w", scenario, err)
	}
	path, err := artifacts.WriteScreenshot(dir, scenario, time.Now(), png)
	if err != nil {
		s.logger.Error("failure screenshot", zap.String("scenario", scenario), zap.Error(err))
		return "", err
	}
	s.logger.Info("saved failure screenshot", zap.String("scenario", scenario), zap.String("path", path))
	return path, nil
}
