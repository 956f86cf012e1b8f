// Package cellgate implements a GCRA (Generic Cell Rate Algorithm) rate
// limiter: a pure decision kernel, three keyed stores with different
// expiry-cleanup strategies, and a single-writer actor that serializes
// decisions from any number of concurrent callers without per-key locking.
//
// The package is usable directly as a library (construct a Store, wrap it
// in an Actor, call Throttle) or driven by the transports under
// internal/transport, which all share one Actor handle.
package cellgate
