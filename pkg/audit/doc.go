// Package audit records administrative authorization changes: system role
// grants and revocations, organization assignments, membership changes and
// custom role lifecycle events. Recording is fire-and-forget; a failed
// write is logged but never fails the mutation that triggered it.
package audit
