// Package logcollector defines the sink tonics write their user-visible
// execution log to: one Record per sparkle dispatch that actually called
// Log, carrying the accumulated lines plus timing and a correlation id.
// ScreenCollector is the always-available reference implementation,
// writing plain lines to the output of a zerolog ConsoleWriter.
package logcollector
