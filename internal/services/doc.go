// Package services sits between the HTTP handlers and the stress test
// pipeline.
//
// StressTestService turns a caller's RunRequest into a full pipeline request
// by filling unset fields from the configured run defaults, runs it through
// the operations manager, and keeps the most recent successful result for the
// read-only endpoints. HealthService reports liveness, readiness and build
// information.
package services
