// Package harness composes the spy registry and the synthetic event
// dispatcher into scenario-driven component tests.
//
// A scenario is a YAML file naming a component definition, the operations
// and callbacks to observe, a flow of synthetic events, direct invocations,
// and prop updates, and assertions over the recorded calls, the unified
// trace, and the component's final state. Runs are deterministic: every
// trace event carries a sequence number from one shared clock, so a
// scenario's trace can be compared byte-for-byte against a golden file.
package harness
