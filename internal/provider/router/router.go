// Package router implements the provider fallback policy: given a
// logical operation, try providers in configured order, failing over only on
// QuotaExhausted or ProviderUnavailable (after a provider's own retries).
// Every attempt is recorded for the stage report; other errors propagate
// immediately without trying further providers.
package router

import (
	"context"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// Candidate is one named provider attempt for a logical operation. The
// generic result type lets one router serve text-generate, image-generate,
// image-search, and web-search with their differing return shapes.
type Candidate[T any] struct {
	Name string
	Call func(ctx context.Context) (T, error)
}

// Try runs candidates in order, stopping at the first success. Failover
// continues only when the error is QuotaExhausted or ProviderUnavailable;
// any other error (notably InvalidOutput) is returned immediately without
// trying the remaining candidates.
func Try[T any](ctx context.Context, operation string, candidates []Candidate[T]) (T, jobmodel.StageReport, error) {
	var zero T
	report := jobmodel.StageReport{StageID: operation, Status: jobmodel.StatusOK}

	var worst error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			report.Status = jobmodel.StatusCancelled
			report.Details = appendAttempt(report.Details, c.Name, err)
			return zero, report, jobmodel.Wrap(jobmodel.KindCancelled, "router cancelled", err)
		}

		val, err := c.Call(ctx)
		if err == nil {
			report.Details = appendAttempt(report.Details, c.Name, nil)
			return val, report, nil
		}

		report.Details = appendAttempt(report.Details, c.Name, err)

		kind := jobmodel.KindOf(err)
		if kind != jobmodel.KindQuotaExhausted && kind != jobmodel.KindProviderUnavailable {
			report.Status = jobmodel.StatusFail
			return zero, report, err
		}
		worst = moreSevere(worst, err)
	}

	report.Status = jobmodel.StatusFail
	if worst == nil {
		worst = jobmodel.New(jobmodel.KindProviderUnavailable, "no candidates configured for "+operation)
	}
	return zero, report, worst
}

func appendAttempt(details, name string, err error) string {
	line := name + ": ok"
	if err != nil {
		line = name + ": " + err.Error()
	}
	if details == "" {
		return line
	}
	return details + "; " + line
}

// severityRank orders error kinds from least to most severe so that, when a
// router exhausts every candidate, it can surface the most severe failure
// observed rather than simply the last one.
var severityRank = map[jobmodel.Kind]int{
	jobmodel.KindQuotaExhausted:      0,
	jobmodel.KindProviderUnavailable: 1,
	jobmodel.KindTimeout:             2,
	jobmodel.KindInvalidOutput:       3,
	jobmodel.KindIntegrityViolation:  4,
	jobmodel.KindIO:                  5,
	jobmodel.KindInputInvalid:        6,
	jobmodel.KindCancelled:           7,
}

// moreSevere returns whichever of a, b ranks higher in severityRank, per
// the router reports the most severe error seen. A nil a is treated
// as less severe than any real error.
func moreSevere(a, b error) error {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if severityRank[jobmodel.KindOf(b)] > severityRank[jobmodel.KindOf(a)] {
		return b
	}
	return a
}
