// Package fraud scores a candidate transaction against the account's recent
// history and a set of blocked locations.
//
// Every transaction is run through four point-weighted rules: large amount,
// velocity, location jump and blocked location. Triggered points are summed
// and capped at 100. Velocity and blocked location halt the transaction
// (IsBlocked); large amount and location jump ask for step-up verification
// (IsFraudulent, VerificationRequired). The two axes are independent.
package fraud

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbd888/verdict/internal/pagination"
)

// Rule thresholds and point values.
const (
	LargeAmountPoints     = 50
	VelocityPoints        = 30
	LocationJumpPoints    = 20
	BlockedLocationPoints = 100

	// VelocityLimit is the highest in-window history count that does not trip
	// the velocity rule.
	VelocityLimit      = 10
	VelocityWindow     = 60 * time.Minute
	LocationJumpWindow = 30 * time.Minute

	MaxRiskScore = 100
)

// LargeAmountThreshold is the amount a transaction must strictly exceed to
// count as large.
var LargeAmountThreshold = decimal.NewFromInt(10000)

// MaxLocationLength bounds location identifiers on transactions and in the
// blocklist.
const MaxLocationLength = 128

// Transaction is a single card or account movement. History entries use the
// same shape as the candidate.
type Transaction struct {
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Location  string          `json:"location" validate:"max=128"`
}

// Locations is a set of location identifiers. The nil set is empty.
type Locations map[string]struct{}

// NewLocations builds a set from the given identifiers.
func NewLocations(locs ...string) Locations {
	set := make(Locations, len(locs))
	for _, l := range locs {
		set[l] = struct{}{}
	}
	return set
}

// Contains reports whether loc is in the set.
func (l Locations) Contains(loc string) bool {
	_, ok := l[loc]
	return ok
}

// Result is the verdict for one transaction.
type Result struct {
	IsFraudulent         bool `json:"isFraudulent"`
	IsBlocked            bool `json:"isBlocked"`
	VerificationRequired bool `json:"verificationRequired"`
	RiskScore            int  `json:"riskScore"`
}

// Outcome collapses a result into a single label for metrics and events.
func (r Result) Outcome() string {
	switch {
	case r.IsBlocked && r.IsFraudulent:
		return "blocked_fraud"
	case r.IsBlocked:
		return "blocked"
	case r.IsFraudulent:
		return "verify"
	default:
		return "clear"
	}
}

// CheckRequest carries everything the service needs to score a transaction.
type CheckRequest struct {
	AccountID        string        `json:"accountId" validate:"required,max=128"`
	Transaction      Transaction   `json:"transaction"`
	History          []Transaction `json:"history"`
	BlockedLocations []string      `json:"blockedLocations,omitempty"`
}

// Assessment is a recorded verdict, kept for the audit trail.
type Assessment struct {
	ID          string      `json:"id"`
	AccountID   string      `json:"accountId"`
	Transaction Transaction `json:"transaction"`
	Result
	Triggered   []string  `json:"triggered"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Store persists assessments. It never holds transaction history; callers
// supply that per request.
type Store interface {
	Record(ctx context.Context, assessment *Assessment) error
	// ListByAccount returns assessments newest first (EvaluatedAt, then ID,
	// descending), starting after before when it is set. limit <= 0 means all.
	ListByAccount(ctx context.Context, accountID string, limit int, before *pagination.Cursor) ([]*Assessment, error)
}
