// Package spy implements the interception registry: it wraps named
// operations on a component definition so every invocation is recorded
// without changing behavior.
//
// A Registry owns one monotonic clock. Every call recorded through the same
// registry, whether on a wrapped operation or a wrapped callback, gets a
// sequence number from that clock, so a test can prove causal chains by
// comparing sequence numbers across independent handles: "toggle ran at
// seq 3, and as a consequence onToggle ran at seq 4".
//
// Each test should own its registry and restore all handles before the next
// test runs; Attach registers that teardown with the test framework so it
// happens on every exit path, including assertion failure.
package spy
