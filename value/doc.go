// Package value defines the constrained value model shared by the harness:
// component props, state fields, event payloads, and recorded call arguments
// are all built from these types.
//
// The model is deliberately small. Floats and nulls are rejected because
// recorded traces are compared byte-for-byte against golden files, and both
// break deterministic canonical serialization. Object keys are ordered by
// UTF-16 code units per RFC 8785 so the same value always marshals to the
// same bytes.
package value
