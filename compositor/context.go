// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compositor holds the application context shared by the
// compositor's subsystems.
//
// A [Context] is created once by the binary and passed explicitly to
// every component that needs the event loop, the startup environment,
// or the current X11 connection. There is no package-level instance.
//
// The X11 connection lifecycle is announced in two phases. During
// teardown, X11ConnectionAboutToBeDestroyed fires while the connection
// is still usable; X11ConnectionChanged then fires with nil once it is
// gone. During setup, X11ConnectionChanged fires with the new
// connection after it has been fully attached.
package compositor

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/bureau-foundation/xwl/lib/eventloop"
	"github.com/bureau-foundation/xwl/lib/lifecycle"
	"github.com/bureau-foundation/xwl/x11"
)

// Context is the compositor application context. All methods are
// loop-confined.
type Context struct {
	Loop   *eventloop.Loop
	Logger *slog.Logger

	// Filters receives every event read from the X11 connection.
	Filters x11.FilterChain

	// X11ConnectionChanged fires with the new connection after
	// PublishX11, and with nil after DetachX11.
	X11ConnectionChanged lifecycle.Signal[*x11.Connection]

	// X11ConnectionAboutToBeDestroyed fires from BeginX11Teardown while
	// the connection is still usable.
	X11ConnectionAboutToBeDestroyed lifecycle.Signal[*x11.Connection]

	environment map[string]string
	connection  *x11.Connection

	// windowManager handles events not claimed by any other filter.
	windowManager       x11.EventFilter
	removeWindowManager func()
}

// New returns a context whose startup environment is a copy of
// environ (KEY=VALUE entries, as from os.Environ).
func New(loop *eventloop.Loop, logger *slog.Logger, environ []string) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	environment := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			continue
		}
		environment[key] = value
	}
	return &Context{
		Loop:        loop,
		Logger:      logger,
		environment: environment,
	}
}

// Setenv sets a variable in the environment handed to processes the
// compositor starts. The compositor's own process environment is left
// alone.
func (c *Context) Setenv(key, value string) { c.environment[key] = value }

// Unsetenv removes a variable from the startup environment.
func (c *Context) Unsetenv(key string) { delete(c.environment, key) }

// Getenv returns a startup environment variable.
func (c *Context) Getenv(key string) (string, bool) {
	value, ok := c.environment[key]
	return value, ok
}

// Environ returns the startup environment as sorted KEY=VALUE entries.
func (c *Context) Environ() []string {
	keys := slices.Sorted(maps.Keys(c.environment))
	environ := make([]string, 0, len(keys))
	for _, key := range keys {
		environ = append(environ, key+"="+c.environment[key])
	}
	return environ
}

// SetWindowManager registers the filter that receives X11 events no
// other filter consumed. It is installed whenever a connection is
// attached.
func (c *Context) SetWindowManager(filter x11.EventFilter) {
	c.windowManager = filter
	if c.connection != nil {
		c.installWindowManager()
	}
}

// X11 returns the current X11 connection, or nil.
func (c *Context) X11() *x11.Connection { return c.connection }

// AttachX11 records connection as the current X11 connection and
// installs the window-manager filter. Listeners are not notified until
// PublishX11.
func (c *Context) AttachX11(connection *x11.Connection) {
	c.connection = connection
	if c.windowManager != nil {
		c.installWindowManager()
	}
}

// PublishX11 announces the attached connection.
func (c *Context) PublishX11() {
	c.X11ConnectionChanged.Emit(c.connection)
}

// BeginX11Teardown announces that the current connection is about to
// be destroyed. No-op when no connection is attached.
func (c *Context) BeginX11Teardown() {
	if c.connection == nil {
		return
	}
	c.X11ConnectionAboutToBeDestroyed.Emit(c.connection)
}

// DetachX11 removes the window-manager filter, forgets the connection,
// and announces its absence. No-op when no connection is attached.
func (c *Context) DetachX11() {
	if c.connection == nil {
		return
	}
	if c.removeWindowManager != nil {
		c.removeWindowManager()
		c.removeWindowManager = nil
	}
	c.connection = nil
	c.X11ConnectionChanged.Emit(nil)
}

// installWindowManager installs the window-manager filter so that
// filters installed later (the selection bridge) run before it.
func (c *Context) installWindowManager() {
	if c.removeWindowManager != nil {
		c.removeWindowManager()
	}
	c.removeWindowManager = c.Filters.Install(c.windowManager)
}
