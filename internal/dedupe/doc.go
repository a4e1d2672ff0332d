// Package dedupe provides a bounded set of processed event ids so a
// conversation can recognise redelivered inbound events.
package dedupe
