// Package openpap provides a Go SDK for the openpap Policy Administration API.
//
// The SDK manages versioned authorization policies on an openpap server:
// create, read, update, rollback, and delete, plus version history. It uses
// only the Go standard library (net/http) with zero external dependencies.
//
// Quick start:
//
//	// Set OPENPAP_SERVER_ADDR env var, or pass WithServerAddr, then:
//	client := openpap.NewClient()
//
//	created, err := client.Create(ctx, openpap.PolicyData{
//	    Description: "allow read access",
//	    Language:    "rego",
//	    Rule:        "package authz\n\nallow { input.method == \"GET\" }",
//	    Owner:       "platform-team",
//	})
//	if err != nil {
//	    var syncErr *openpap.SyncRejectedError
//	    if errors.As(err, &syncErr) {
//	        fmt.Printf("decision engine rejected the rule: %s\n", syncErr.Detail)
//	    }
//	}
package openpap

// PolicyData is the mutable content of a policy.
type PolicyData struct {
	// Description is a free-text summary of what the policy does.
	Description string `json:"description"`

	// Language is the policy language: "rego", "cedar", or "alfa".
	// Only rego policies are pushed to the decision engine.
	Language string `json:"language"`

	// Rule is the policy rule text, passed through verbatim.
	Rule string `json:"rule"`

	// Owner identifies the team or person responsible for the policy.
	Owner string `json:"owner"`
}

// Policy is the current state of a stored policy.
type Policy struct {
	// ID is the server-assigned policy identifier.
	ID string

	// Data is the policy content.
	Data PolicyData

	// Version is the opaque version token of the current state.
	Version string

	// LastModified is the timestamp of the last change, RFC 3339 UTC.
	LastModified string
}

// HistoryEntry is one entry in a policy's version history, oldest first.
type HistoryEntry struct {
	// Data is the policy content recorded under this version.
	Data PolicyData

	// Version is the version token of this entry.
	Version string

	// LastModified is the timestamp the entry was recorded, RFC 3339 UTC.
	LastModified string

	// RuleDigest is a short fingerprint of the rule text, useful for
	// spotting identical rule content across versions.
	RuleDigest string
}

// envelopeKey is the wire name the policy payload is nested under.
const envelopeKey = "auth-policy:policy"

// wire types mirroring the server's JSON shapes.

type policyPayload struct {
	Description  string `json:"description"`
	Language     string `json:"language"`
	Rule         string `json:"rule"`
	Owner        string `json:"owner"`
	Version      string `json:"version,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

type policyEnvelope struct {
	Policy policyPayload `json:"auth-policy:policy"`
}

type policyResult struct {
	PolicyID string        `json:"policy_id"`
	Policy   policyPayload `json:"auth-policy:policy"`
}

type versionEntry struct {
	Description  string `json:"description"`
	Language     string `json:"language"`
	Rule         string `json:"rule"`
	Owner        string `json:"owner"`
	Version      string `json:"version"`
	LastModified string `json:"last_modified"`
	RuleDigest   string `json:"rule_digest"`
}

type historyResult struct {
	PolicyID string         `json:"policy_id"`
	Versions []versionEntry `json:"versions"`
}

type listResult struct {
	Policies []string `json:"policies"`
}

type errorResult struct {
	Detail string `json:"detail"`
}

func (r policyResult) toPolicy() *Policy {
	return &Policy{
		ID: r.PolicyID,
		Data: PolicyData{
			Description: r.Policy.Description,
			Language:    r.Policy.Language,
			Rule:        r.Policy.Rule,
			Owner:       r.Policy.Owner,
		},
		Version:      r.Policy.Version,
		LastModified: r.Policy.LastModified,
	}
}
