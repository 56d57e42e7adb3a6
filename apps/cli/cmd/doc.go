// Package cmd implements the hitcontract CLI commands using Cobra.
//
// Available commands:
//   - run: Execute contract suites and report the results
//   - validate: Check suite files without sending requests
//   - list: Display the cases of each suite
//   - history: Show runs stored in a history database
//   - init: Create a config file and an example suite
//   - version: Show hitcontract version information
//   - completion: Generate shell completion scripts
//
// Exit codes distinguish test failures from parse, config and network
// problems; see exitcodes.go.
package cmd
