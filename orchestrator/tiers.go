// Copyright 2025 achetronic
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/achetronic/lexguard/analysis"
	"github.com/achetronic/lexguard/config"
	"github.com/achetronic/lexguard/errors"
)

// tier is one step of the fallback chain. A non-empty skip means the tier
// is unavailable for this request and is recorded without being run.
type tier[T any] struct {
	name  string
	skip  string
	retry bool
	run   func(ctx context.Context) (T, error)
}

// outcome is what runTiers hands back on success.
type outcome[T any] struct {
	value    T
	method   string
	attempts []analysis.TierAttempt
	reason   string
}

// retryPolicy bounds the retries of AI tiers.
type retryPolicy struct {
	maxTries uint
	initial  time.Duration
	max      time.Duration
}

func newRetryPolicy(model config.Model, perf config.Performance) retryPolicy {
	return retryPolicy{
		maxTries: uint(max(model.RetryAttempts, 1)),
		initial:  time.Duration(perf.BackoffInitialMs) * time.Millisecond,
		max:      time.Duration(perf.BackoffMaxMs) * time.Millisecond,
	}
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, errors.ErrValidation) || errors.Is(err, errors.ErrPluginContract)
}

// runTiers tries each tier in order and returns the first success. Every
// tier, skipped or run, is recorded in the outcome's attempts. When all
// tiers fail a terminal AnalysisError carries the last cause.
func runTiers[T any](ctx context.Context, o *Orchestrator, operation string, policy retryPolicy, tiers []tier[T]) (outcome[T], error) {
	var (
		out      outcome[T]
		failures []errors.TierFailure
		reasons  []string
		lastErr  error
		previous string
	)

	for _, t := range tiers {
		if t.skip != "" {
			out.attempts = append(out.attempts, analysis.TierAttempt{Tier: t.name, Error: t.skip})
			failures = append(failures, errors.TierFailure{Tier: t.name, Error: t.skip})
			reasons = append(reasons, t.name+": "+t.skip)
			previous = t.name
			continue
		}
		if previous != "" {
			o.metrics.IncFallback(previous, t.name)
		}

		value, tries, err := runTier(ctx, o, operation, t, policy)
		attempt := analysis.TierAttempt{Tier: t.name, Attempts: tries}

		if err == nil {
			out.attempts = append(out.attempts, attempt)
			out.value = value
			out.method = t.name
			out.reason = strings.Join(reasons, "; ")
			return out, nil
		}

		attempt.Error = err.Error()
		out.attempts = append(out.attempts, attempt)
		failures = append(failures, errors.TierFailure{Tier: t.name, Attempts: tries, Error: err.Error()})
		reasons = append(reasons, fmt.Sprintf("%s: %v", t.name, err))
		lastErr = err
		previous = t.name

		o.logger.Warn("Orchestrator: tier failed, falling back",
			"operation", operation,
			"tier", t.name,
			"attempts", tries,
			"error", err,
		)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no tier available")
	}
	return out, errors.NewAnalysisError(fmt.Sprintf("all tiers failed for %s", operation), failures, lastErr)
}

// runTier runs one tier, retrying transient failures with exponential
// backoff when the tier allows it.
func runTier[T any](ctx context.Context, o *Orchestrator, operation string, t tier[T], policy retryPolicy) (T, int, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.tier", trace.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("tier", t.name),
	))
	defer span.End()

	tries := 0
	op := func() (T, error) {
		tries++
		v, err := t.run(ctx)
		if err != nil && permanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	maxTries := uint(1)
	if t.retry {
		maxTries = policy.maxTries
	}

	b := backoff.NewExponentialBackOff()
	if policy.initial > 0 {
		b.InitialInterval = policy.initial
	}
	if policy.max > 0 {
		b.MaxInterval = max(policy.max, b.InitialInterval)
	}

	value, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.logger.Debug("Orchestrator: retrying tier",
				"tier", t.name,
				"attempt", tries,
				"next", next,
				"error", err,
			)
		}),
	)

	span.SetAttributes(attribute.Int("attempts", tries))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tier failed")
	}
	return value, tries, err
}
