// Package policy contains purchase-decision policies pluggable into a
// requester agent. Policies are pure functions of (service, price).
package policy

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentpay/core"
)

// DefaultThreshold is the maximum price accepted by the stock policy.
const DefaultThreshold = 1.0

// Threshold returns a decision function accepting any price up to max
// (inclusive). The reasoning names the budget so counterparties can log a
// meaningful decline.
func Threshold(max float64) core.DecisionFunc {
	return func(_ context.Context, service string, price float64) (core.Decision, error) {
		accept := price <= max
		verdict := "too expensive"
		if accept {
			verdict = "acceptable"
		}
		return core.Decision{
			Accept:    accept,
			Reasoning: fmt.Sprintf("the price of %g for %s is %s; my budget threshold is %g", price, service, verdict, max),
		}, nil
	}
}
