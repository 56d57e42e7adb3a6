package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/parser"
	"github.com/abdul-hamid-achik/hitcontract/packages/http"
)

// waitForService polls cfg.URL until it returns the expected status or the
// wait times out.
func (r *Runner) waitForService(ctx context.Context, cfg *parser.WaitFor, resolver *env.Resolver) error {
	if cfg == nil {
		return nil
	}

	url, err := resolver.Resolve(cfg.URL)
	if err != nil {
		return fmt.Errorf("waitFor: %w", err)
	}
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	interval := time.Duration(cfg.Interval) * time.Millisecond

	log := r.log.With().Str("url", url).Int("status", cfg.Status).Logger()
	log.Info().Dur("timeout", timeout).Msg("waiting for service")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := http.NewClient(http.WithTimeout(5 * time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	var lastStatus int
	for {
		resp, err := client.Send(ctx, http.NewRequest("GET", url))
		if err != nil {
			lastErr = err
		} else {
			lastStatus = resp.StatusCode
			if resp.StatusCode == cfg.Status {
				log.Info().Msg("service is ready")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil && lastStatus == 0 {
				return fmt.Errorf("service %s not ready after %v: %w", url, timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				url, timeout, lastStatus, cfg.Status)
		case <-ticker.C:
		}
	}
}
