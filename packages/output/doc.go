// Package output renders finalized runs. Each format is a reporter.Observer:
//   - Console: colored terminal output with latency percentiles
//   - JSON: machine-readable summary and per-test results
//   - JUnit: JUnit XML for CI integration
//   - TAP: Test Anything Protocol version 13
package output
