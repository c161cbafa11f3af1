package detection

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// PollWeights asks the catalog for its weights until the list is non-empty
// or attempts run out. Used at startup while the detector service warms up.
func PollWeights(ctx context.Context, c WeightCatalog, attempts int, interval time.Duration, logger *slog.Logger) ([]string, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var weights []string
	op := func() error {
		w, err := c.Weights(ctx)
		if err != nil {
			return err
		}
		if len(w) == 0 {
			return ErrNoWeights
		}
		weights = w
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), uint64(attempts-1)), ctx)
	notify := func(err error, next time.Duration) {
		if logger != nil {
			logger.Debug("weights not ready", "error", err, "retry_in", next)
		}
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrNoWeights, "after %d attempts: %v", attempts, err)
	}
	return weights, nil
}
