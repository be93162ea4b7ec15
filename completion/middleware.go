package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/tbxark/soliddialog/cache"
)

// Middleware decorates a Completer with a cross-cutting concern.
type Middleware func(Completer) Completer

// Wrap applies middlewares in left-to-right order: Wrap(inner, A, B) is
// A(B(inner)).
func Wrap(inner Completer, mws ...Middleware) Completer {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}

// WithTimeout bounds every call. A timed-out call returns the context error.
func WithTimeout(d time.Duration) Middleware {
	return func(next Completer) Completer {
		if d <= 0 {
			return next
		}
		return Func(func(ctx context.Context, prompt string) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Complete(ctx, prompt)
		})
	}
}

func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Completer) Completer {
		return Func(func(ctx context.Context, prompt string) (string, error) {
			start := time.Now()
			out, err := next.Complete(ctx, prompt)
			if err != nil {
				logger.Error("completion failed", "err", err, "prompt_len", len(prompt), "elapsed", time.Since(start))
				return "", err
			}
			logger.Debug("completion done", "prompt_len", len(prompt), "output_len", len(out), "elapsed", time.Since(start))
			return out, nil
		})
	}
}

// WithCache serves repeated prompts from c. Cache errors never fail a call.
func WithCache(c cache.Cache[string]) Middleware {
	return func(next Completer) Completer {
		if c == nil {
			return next
		}
		return Func(func(ctx context.Context, prompt string) (string, error) {
			key := HashKey(prompt)
			if val, ok, err := c.Get(ctx, key); err == nil && ok {
				return val, nil
			}
			out, err := next.Complete(ctx, prompt)
			if err != nil {
				return "", err
			}
			if err := c.Set(ctx, key, out); err != nil {
				slog.Warn("completion cache set failed", "err", err)
			}
			return out, nil
		})
	}
}

func HashKey(prompt string) string {
	h := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(h[:])
}
