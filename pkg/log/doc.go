// Package log provides structured protocol event logging for bcm-go.
//
// Components emit log.Event values describing wire traffic, state
// changes and errors on a channel. Applications choose a sink: the
// NoopLogger (default), the SlogAdapter for console output, the
// FileLogger for a compact CBOR capture file that can be replayed by
// tooling, or a MultiLogger combining several sinks.
package log
