// Package verdict provides deterministic local logic for judging measured
// metrics against expected thresholds.
package verdict

import (
	"strconv"
	"strings"

	"github.com/dshills/synthcheck/internal/schema"
)

// StatusOrdinal returns the numeric ordinal for a status, used to compare
// severity order. PASS=0, NO_DATA=1, WARN=2, FAIL=3.
// Used by --fail-on comparison: exit 2 if StatusOrdinal(actual) >= StatusOrdinal(threshold).
func StatusOrdinal(s schema.Status) int {
	switch s {
	case schema.StatusPass:
		return 0
	case schema.StatusNoData:
		return 1
	case schema.StatusWarn:
		return 2
	case schema.StatusFail:
		return 3
	default:
		return -1
	}
}

// Met reports whether measured satisfies the strict comparison of d against
// expected. Equality is never a success.
func Met(d schema.Direction, measured, expected int) bool {
	switch d {
	case schema.DirectionBelow:
		return measured < expected
	case schema.DirectionAbove:
		return measured > expected
	default:
		return false
	}
}

// missStatus is the status a missed expectation maps to. WARN unless the
// expectation asks for FAIL.
func missStatus(exp schema.Expectation) schema.Status {
	if exp.OnMiss == schema.StatusFail {
		return schema.StatusFail
	}
	return schema.StatusWarn
}

// Evaluate judges one measured value. ok == false means the value is missing
// and yields NO_DATA.
func Evaluate(exp schema.Expectation, measured int, ok bool) schema.Result {
	r := schema.Result{
		Scope:     exp.Scope,
		Metric:    exp.Metric,
		Expected:  exp.Threshold,
		Direction: exp.Direction,
	}
	if !ok {
		r.Status = schema.StatusNoData
		return r
	}
	v := measured
	r.Measured = &v
	if Met(exp.Direction, measured, exp.Threshold) {
		r.Status = schema.StatusPass
	} else {
		r.Status = missStatus(exp)
	}
	return r
}

// EvaluateText judges a raw measured string. Text that does not parse as a
// non-negative integer yields NO_DATA.
func EvaluateText(exp schema.Expectation, raw string) schema.Result {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return Evaluate(exp, 0, false)
	}
	return Evaluate(exp, n, true)
}

// EvaluateRecord judges exp against the value of its metric in rec.
func EvaluateRecord(exp schema.Expectation, rec schema.MetricRecord) schema.Result {
	v, ok := rec.Get(exp.Metric)
	return Evaluate(exp, v, ok)
}

// Escalate promotes WARN results to FAIL. Used by strict mode.
func Escalate(results []schema.Result) []schema.Result {
	out := make([]schema.Result, len(results))
	for i, r := range results {
		if r.Status == schema.StatusWarn {
			r.Status = schema.StatusFail
		}
		out[i] = r
	}
	return out
}

// Summarize counts result statuses and computes the overall status as the
// worst one by ordinal. No results yields PASS.
func Summarize(results []schema.Result) schema.Summary {
	s := schema.Summary{Overall: schema.StatusPass}
	for _, r := range results {
		switch r.Status {
		case schema.StatusPass:
			s.PassCount++
		case schema.StatusWarn:
			s.WarnCount++
		case schema.StatusFail:
			s.FailCount++
		case schema.StatusNoData:
			s.NoDataCount++
		}
		if StatusOrdinal(r.Status) > StatusOrdinal(s.Overall) {
			s.Overall = r.Status
		}
	}
	return s
}
