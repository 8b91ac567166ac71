package runtime

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/newsrag/config"
)

// Retry calls op until it succeeds, the attempts in cfg are exhausted or ctx
// is done. Attempts are spaced by the fixed startup delay.
func Retry(ctx context.Context, cfg config.StartupConfig, log zerolog.Logger, what string, op func(context.Context) error) error {
	cfg = cfg.Normalize()
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Delay), uint64(cfg.Retries)),
		ctx,
	)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return op(ctx)
	}, policy, func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("dependency", what).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("dependency not ready")
	})
}
