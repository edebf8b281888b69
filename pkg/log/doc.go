/*
Package log provides structured logging for TaskTonic using zerolog.

The log package wraps zerolog to give every runtime component (catalysts,
tonics, timers) JSON or console-formatted output with consistent context
fields, without threading a logger argument through every constructor.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("ledger")                  │          │
	│  │  - WithCatalyst("main")                     │          │
	│  │  - WithTonic(id, "hello")                   │          │
	│  │  - WithTimer(id)                            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "tonic_name": "hello",                   │          │
	│  │    "time": "2026-07-29T10:30:00Z",         │          │
	│  │    "message": "sparkle dispatched"          │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF sparkle dispatched tonic_name=hello │     │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all TaskTonic packages

Log Levels:
  - Debug: sparkle dispatch and timer rearm detail
  - Info: catalyst/tonic lifecycle (spawned, finished, started)
  - Warn: recoverable conditions
  - Error: handler panics, failed state transitions, sparkles dropped
    because no catalyst is bound
  - Fatal: unrecoverable startup failures

Configuration:
  - Level: filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: tag logs with an arbitrary component name
  - WithCatalyst: tag logs with the owning catalyst's name
  - WithTonic: tag logs with a tonic's id and name
  - WithTimer: tag logs with a timer's id

# Usage

Initializing the logger:

	import "github.com/tasktonic/tasktonic/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple logging:

	log.Info("ledger initialized")
	log.Debug("resolving service singleton")
	log.Warn("sparkle sent with no catalyst bound")
	log.Error("handler panicked")

Structured logging:

	log.Logger.Info().
		Str("tonic_name", "hello").
		Int("tonic_id", 3).
		Msg("tonic spawned")

Context loggers:

	catalystLog := log.WithCatalyst("main")
	catalystLog.Info().Msg("loop started")

	tonicLog := log.WithTonic(tn.ID(), tn.Name())
	tonicLog.Error().Err(err).Msg("state transition failed")

# Integration Points

This package is used by:

  - cmd/tasktonic: calls Init from its cobra OnInitialize hook

pkg/catalyst (panics from queued work and timer callbacks) and pkg/tonic
(handler panics, failed state transitions, dropped sparkles) log through
zerolog's own global logger, github.com/rs/zerolog/log, not through this
package's Logger; of Init's settings only the global level reaches them.
pkg/ledger and pkg/bootstrap do not log.

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance, initialized once at process start
  - Accessible from all packages without passing a logger through every
    constructor — matches the rest of the runtime's preference for shared,
    lazily-resolved state (the ledger, the formula store) over explicit
    threading where the value is process-wide by nature

Context Logger Pattern:
  - Create child loggers with component/catalyst/tonic/timer fields
  - Pass the child logger into the code that needs the context, rather
    than repeating .Str("tonic_name", ...) at every call site

# Best Practices

Do:
  - Use Info level for production, Debug for sparkle-level tracing
  - Use WithTonic/WithCatalyst/WithTimer instead of ad hoc .Str() fields
  - Log handler panics from a recover path, as tonic's runRecovered does
    with .Interface("panic", r)

Don't:
  - Log dispatch arguments verbatim (they may contain user data)
  - Use Debug level in production — sparkle dispatch is high frequency
  - Block on log writes in a catalyst's main loop; use buffered output

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
