// Package runner executes suites parsed by package parser.
//
// Each case becomes one spec builder execution, so every executed case
// contributes exactly one entry to the reporter. The runner:
//   - orders cases by dependsOn and skips cases whose dependencies did not pass
//   - selects cases by name glob, tags, and only/skip flags
//   - resolves {{...}} expressions and carries captures between cases
//   - runs independent cases concurrently when Concurrency > 1
//   - paces case starts with a rate limiter
//   - waits for the service and runs before/after commands around a suite
package runner
