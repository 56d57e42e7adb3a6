package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
)

// runBefore runs the suite's before commands in order and stops at the
// first failure.
func (r *Runner) runBefore(ctx context.Context, commands []string, baseDir string, resolver *env.Resolver) error {
	for _, command := range commands {
		if err := r.runCommand(ctx, command, baseDir, resolver); err != nil {
			return fmt.Errorf("before command failed: %w", err)
		}
	}
	return nil
}

// runAfter runs every after command even when one fails and returns the
// first failure.
func (r *Runner) runAfter(ctx context.Context, commands []string, baseDir string, resolver *env.Resolver) error {
	var firstErr error
	for _, command := range commands {
		if err := r.runCommand(ctx, command, baseDir, resolver); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("after command failed: %w", err)
		}
	}
	return firstErr
}

// runCommand runs one command through sh -c in baseDir. A leading "-"
// ignores a non-zero exit. Scripts given as ./x or ../x are resolved
// against baseDir.
func (r *Runner) runCommand(ctx context.Context, command, baseDir string, resolver *env.Resolver) error {
	cmdStr, err := resolver.Resolve(command)
	if err != nil {
		return fmt.Errorf("command %q: %w", command, err)
	}
	cmdStr = strings.TrimSpace(cmdStr)

	ignoreError := strings.HasPrefix(cmdStr, "-")
	if ignoreError {
		cmdStr = strings.TrimSpace(strings.TrimPrefix(cmdStr, "-"))
	}
	if cmdStr == "" {
		return nil
	}

	parts := strings.Fields(cmdStr)
	if strings.HasPrefix(parts[0], "./") || strings.HasPrefix(parts[0], "../") {
		parts[0] = filepath.Join(baseDir, parts[0])
		cmdStr = strings.Join(parts, " ")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	cmd.Dir = baseDir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	log := r.log.With().Str("command", command).Logger()
	if len(output) > 0 {
		log.Debug().Str("output", strings.TrimSpace(string(output))).Msg("command output")
	}
	if err != nil {
		if ignoreError {
			log.Warn().Err(err).Msg("command failed, ignored")
			return nil
		}
		return fmt.Errorf("command %q failed: %v\noutput: %s", command, err, output)
	}
	return nil
}
