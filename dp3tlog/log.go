// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package dp3tlog wires the module's structured logging once per process,
// installing a devlog handler as the slog default rather than leaving
// every package to log ad hoc.
package dp3tlog

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"hermannm.dev/devlog"
)

var (
	level    slog.LevelVar
	setup    sync.Once
	debugOut io.Writer = os.Stdout
)

// Configure installs a devlog handler as the slog default, at Info level
// unless debug is set. It is safe to call more than once: the handler
// itself is installed only on the first call, and the level is raised to
// Debug by any call with debug=true; a later debug=false call does not
// lower it back.
func Configure(debug bool) {
	setup.Do(func() {
		slog.SetDefault(slog.New(devlog.NewHandler(debugOut, &devlog.Options{
			Level: &level,
		})))
	})
	if debug {
		level.Set(slog.LevelDebug)
	}
}
