// Package sinks implements concrete snapshot renderers such as structured
// logging, Prometheus gauges, a latest-state holder for the HTTP API, Pub/Sub
// run notifications and a plain text console. Each sink satisfies the
// marshal.Renderer interface and is only driven from the marshal goroutine.
package sinks
