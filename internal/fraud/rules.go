package fraud

import "time"

// Effect is the set of verdict flags a triggered rule raises.
type Effect uint8

const (
	// EffectBlock sets IsBlocked.
	EffectBlock Effect = 1 << iota
	// EffectVerify sets IsFraudulent and VerificationRequired.
	EffectVerify
)

func (e Effect) String() string {
	switch e {
	case EffectBlock:
		return "block"
	case EffectVerify:
		return "verify"
	case EffectBlock | EffectVerify:
		return "block+verify"
	default:
		return "none"
	}
}

// Input is the snapshot a rule is matched against.
type Input struct {
	Transaction Transaction
	History     []Transaction
	Blocked     Locations
}

// Rule is a single predicate with the points and flags it contributes.
type Rule struct {
	Name   string
	Points int
	Effect Effect
	Match  func(in Input) bool
}

// Rule names, also used as metric labels.
const (
	RuleLargeAmount     = "large_amount"
	RuleVelocity        = "velocity"
	RuleLocationJump    = "location_jump"
	RuleBlockedLocation = "blocked_location"
)

// DefaultRules returns the production rule table.
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleLargeAmount, Points: LargeAmountPoints, Effect: EffectVerify, Match: largeAmount},
		{Name: RuleVelocity, Points: VelocityPoints, Effect: EffectBlock, Match: velocity},
		{Name: RuleLocationJump, Points: LocationJumpPoints, Effect: EffectVerify, Match: locationJump},
		{Name: RuleBlockedLocation, Points: BlockedLocationPoints, Effect: EffectBlock, Match: blockedLocation},
	}
}

func largeAmount(in Input) bool {
	return in.Transaction.Amount.GreaterThan(LargeAmountThreshold)
}

// velocity trips when more than VelocityLimit history entries fall inside the
// trailing hour. The candidate itself is not counted.
func velocity(in Input) bool {
	count := 0
	for _, h := range in.History {
		if inWindow(h.Timestamp, in.Transaction.Timestamp, VelocityWindow) {
			count++
		}
	}
	return count > VelocityLimit
}

func locationJump(in Input) bool {
	for _, h := range in.History {
		if h.Location != in.Transaction.Location &&
			inWindow(h.Timestamp, in.Transaction.Timestamp, LocationJumpWindow) {
			return true
		}
	}
	return false
}

func blockedLocation(in Input) bool {
	return in.Blocked.Contains(in.Transaction.Location)
}

// inWindow reports whether ts lies in [at-d, at], both ends inclusive.
func inWindow(ts, at time.Time, d time.Duration) bool {
	return !ts.Before(at.Add(-d)) && !ts.After(at)
}
