// Package assist answers natural language queries about devices.
//
// The Router runs a fixed fallback chain. The external reasoning
// gateway gets the first shot; when it is down or unconfigured, local
// pattern matching answers reading lookups and recognized relay
// commands without any network round trip; a hosted language model is
// the last resort for everything else. Each answer reports the stage
// that produced it.
//
// The package also produces on-demand sensor analyses through the
// model, keeping a bounded in-memory history of results.
package assist
