// Package authz declares the §6 AuthorizationProvider contract: a capability
// interface the dispatcher core can consult before handing a message to a
// handler. No concrete provider ships in this module — role, claim and
// custom-assertion backends are external collaborators, same as a SQL
// outbox.Storage implementation would be.
package authz

import "context"

// Principal identifies the caller an operation is authorized on behalf of.
type Principal struct {
	ID    string
	Roles []string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	Code    string
}

// Allow returns an Allowed Decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny returns a denied Decision carrying reason and code.
func Deny(reason, code string) Decision { return Decision{Reason: reason, Code: code} }

// Provider authorizes a principal to perform operation on a message of the
// given type, e.g. "dispatch" on "CreateOrder".
type Provider interface {
	Authorize(ctx context.Context, principal Principal, messageType, operation string) (Decision, error)
}
