// Package outbound defines ports to external collaborators.
package outbound

import "context"

// DecisionEngine is the external service that compiles and evaluates rego
// rules at runtime. The PAP only distributes rule text to it; evaluation
// never happens in this process.
//
// Calls are synchronous with no retry. Callers decide whether an error is
// fatal to the enclosing operation.
type DecisionEngine interface {
	// Upsert creates or replaces the rule stored under policyID.
	Upsert(ctx context.Context, policyID, rule string) error
	// Delete removes the rule stored under policyID.
	Delete(ctx context.Context, policyID string) error
}
