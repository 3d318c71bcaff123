// Package component provides the collaborator contract the harness observes:
// definitions with a named, swappable operation table, and instances with
// props, state, elements, and render tracking.
//
// The operation table is the interception seam. Instances resolve operations
// through their definition at call time, so swapping an entry makes every
// subsequent invocation (direct, or indirect through an element handler or
// another operation) go through the replacement. The spy package relies on
// this to observe calls without modifying component code.
package component
