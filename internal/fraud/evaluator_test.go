package fraud

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

func tx(amount int64, at time.Time, loc string) Transaction {
	return Transaction{Amount: decimal.NewFromInt(amount), Timestamp: at, Location: loc}
}

func minutesAgo(m int) time.Time {
	return now.Add(-time.Duration(m) * time.Minute)
}

// burst returns n history entries at loc, the first at offset minutes back
// and each following one step minutes further back.
func burst(n, offset, step int, loc string) []Transaction {
	out := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tx(100, minutesAgo(offset+i*step), loc))
	}
	return out
}

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		history []Transaction
		blocked Locations
		want    Result
	}{
		{
			name: "amount above threshold",
			tx:   tx(10001, now, "BR"),
			want: Result{IsFraudulent: true, VerificationRequired: true, RiskScore: 50},
		},
		{
			name:    "more than ten transactions in the last hour",
			tx:      tx(100, now, "BR"),
			history: burst(11, 0, 5, "BR"),
			want:    Result{IsBlocked: true, RiskScore: 30},
		},
		{
			name:    "location change within thirty minutes",
			tx:      tx(100, now, "USA"),
			history: []Transaction{tx(100, minutesAgo(10), "BR")},
			want:    Result{IsFraudulent: true, VerificationRequired: true, RiskScore: 20},
		},
		{
			name:    "blacklisted location",
			tx:      tx(100, now, "HighRiskLocation"),
			blocked: NewLocations("HighRiskLocation"),
			want:    Result{IsBlocked: true, RiskScore: 100},
		},
		{
			name:    "large amount at blacklisted location caps at 100",
			tx:      tx(10001, now, "HighRiskLocation"),
			blocked: NewLocations("HighRiskLocation"),
			want:    Result{IsFraudulent: true, IsBlocked: true, VerificationRequired: true, RiskScore: 100},
		},
		{
			name: "no fraud detected",
			tx:   tx(100, now, "BR"),
			want: Result{},
		},
		{
			name:    "velocity and location jump",
			tx:      tx(100, now, "USA"),
			history: burst(11, 0, 5, "BR"),
			want:    Result{IsFraudulent: true, IsBlocked: true, VerificationRequired: true, RiskScore: 50},
		},
		{
			name:    "large amount, velocity and location jump",
			tx:      tx(20000, now, "USA"),
			history: burst(11, 0, 5, "BR"),
			want:    Result{IsFraudulent: true, IsBlocked: true, VerificationRequired: true, RiskScore: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.tx, tt.history, tt.blocked)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLargeAmount_Threshold(t *testing.T) {
	tests := []struct {
		amount  string
		trigger bool
	}{
		{"0", false},
		{"9999.99", false},
		{"10000", false},
		{"10000.00", false},
		{"10000.01", true},
		{"10001", true},
		{"1000000", true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			candidate := Transaction{Amount: decimal.RequireFromString(tt.amount), Timestamp: now, Location: "BR"}
			res, triggered := NewEvaluator().EvaluateDetailed(candidate, nil, nil)
			if tt.trigger {
				assert.Equal(t, []string{RuleLargeAmount}, triggered)
				assert.Equal(t, LargeAmountPoints, res.RiskScore)
			} else {
				assert.Empty(t, triggered)
				assert.Zero(t, res.RiskScore)
			}
		})
	}
}

func TestVelocity_Boundaries(t *testing.T) {
	candidate := tx(100, now, "BR")

	tests := []struct {
		name    string
		history []Transaction
		trigger bool
	}{
		{"exactly ten in window", burst(10, 0, 5, "BR"), false},
		{"eleven in window", burst(11, 0, 5, "BR"), true},
		{"eleventh exactly sixty minutes back", append(burst(10, 0, 5, "BR"), tx(100, minutesAgo(60), "BR")), true},
		{"eleventh sixty one minutes back", append(burst(10, 0, 5, "BR"), tx(100, minutesAgo(61), "BR")), false},
		{"eleventh one nanosecond past the window", append(burst(10, 0, 5, "BR"), tx(100, now.Add(-VelocityWindow-time.Nanosecond), "BR")), false},
		{"all at the same instant as the candidate", burst(11, 0, 0, "BR"), true},
		{"entries after the candidate are ignored", append(burst(10, 0, 5, "BR"), tx(100, now.Add(time.Minute), "BR")), false},
		{"many old entries", burst(50, 61, 1, "BR"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := velocity(Input{Transaction: candidate, History: tt.history})
			assert.Equal(t, tt.trigger, got)
		})
	}
}

func TestVelocity_DoesNotCountCandidate(t *testing.T) {
	// Ten prior plus the candidate would be eleven, but only history counts.
	res := Evaluate(tx(100, now, "BR"), burst(10, 1, 5, "BR"), nil)
	assert.False(t, res.IsBlocked)
	assert.Zero(t, res.RiskScore)
}

func TestLocationJump_Boundaries(t *testing.T) {
	candidate := tx(100, now, "USA")

	tests := []struct {
		name    string
		history []Transaction
		trigger bool
	}{
		{"different location exactly thirty minutes back", []Transaction{tx(100, minutesAgo(30), "BR")}, true},
		{"different location thirty one minutes back", []Transaction{tx(100, minutesAgo(31), "BR")}, false},
		{"different location at the same instant", []Transaction{tx(100, now, "BR")}, true},
		{"same location in window", burst(20, 0, 1, "USA"), false},
		{"one different among many same", append(burst(5, 0, 1, "USA"), tx(100, minutesAgo(29), "BR")), true},
		{"different location in the future", []Transaction{tx(100, now.Add(time.Minute), "BR")}, false},
		{"no history", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := locationJump(Input{Transaction: candidate, History: tt.history})
			assert.Equal(t, tt.trigger, got)
		})
	}
}

func TestBlockedLocation_IndependentOfEverythingElse(t *testing.T) {
	blocked := NewLocations("XX", "YY")

	for _, amount := range []int64{0, 100, 10001} {
		res := Evaluate(tx(amount, now, "XX"), burst(3, 0, 40, "XX"), blocked)
		assert.True(t, res.IsBlocked, "amount %d", amount)
		assert.Equal(t, MaxRiskScore, res.RiskScore)
	}

	res := Evaluate(tx(100, now, "ZZ"), nil, blocked)
	assert.False(t, res.IsBlocked)
}

func TestBlockedLocation_NilSet(t *testing.T) {
	assert.False(t, blockedLocation(Input{Transaction: tx(100, now, "BR")}))
}

func TestEvaluate_ZonesAreComparedAsInstants(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	// 30 minutes before now, expressed in a different zone.
	prior := tx(100, minutesAgo(30).In(saoPaulo), "BR")
	res := Evaluate(tx(100, now, "USA"), []Transaction{prior}, nil)
	assert.True(t, res.IsFraudulent)
}

// Every combination of the four rules keeps the flag and score invariants.
func TestEvaluate_AllRuleCombinations(t *testing.T) {
	for mask := 0; mask < 16; mask++ {
		r1, r2, r3, r4 := mask&1 != 0, mask&2 != 0, mask&4 != 0, mask&8 != 0
		t.Run(fmt.Sprintf("r1=%v,r2=%v,r3=%v,r4=%v", r1, r2, r3, r4), func(t *testing.T) {
			candidate := tx(100, now, "USA")
			if r1 {
				candidate.Amount = decimal.NewFromInt(10001)
			}
			var history []Transaction
			if r2 {
				history = append(history, burst(11, 40, 1, "USA")...)
			}
			if r3 {
				history = append(history, tx(100, minutesAgo(5), "BR"))
			}
			var blocked Locations
			if r4 {
				blocked = NewLocations("USA")
			}

			res := Evaluate(candidate, history, blocked)

			raw := 0
			if r1 {
				raw += LargeAmountPoints
			}
			if r2 {
				raw += VelocityPoints
			}
			if r3 {
				raw += LocationJumpPoints
			}
			if r4 {
				raw += BlockedLocationPoints
			}
			want := raw
			if want > MaxRiskScore {
				want = MaxRiskScore
			}

			assert.Equal(t, want, res.RiskScore)
			assert.GreaterOrEqual(t, res.RiskScore, 0)
			assert.LessOrEqual(t, res.RiskScore, MaxRiskScore)
			assert.Equal(t, r2 || r4, res.IsBlocked)
			assert.Equal(t, r1 || r3, res.IsFraudulent)
			assert.Equal(t, res.IsFraudulent, res.VerificationRequired)
		})
	}
}

func TestEvaluate_RuleOrderDoesNotMatter(t *testing.T) {
	rules := DefaultRules()
	reversed := make([]Rule, len(rules))
	for i, r := range rules {
		reversed[len(rules)-1-i] = r
	}

	candidate := tx(10001, now, "USA")
	history := append(burst(11, 0, 5, "USA"), tx(100, minutesAgo(3), "BR"))
	blocked := NewLocations("USA")

	forward := NewEvaluator().Evaluate(candidate, history, blocked)
	backward := NewEvaluator(WithRules(reversed...)).Evaluate(candidate, history, blocked)
	assert.Equal(t, forward, backward)
}

func TestEvaluate_DoesNotMutateInputs(t *testing.T) {
	candidate := tx(10001, now, "USA")
	history := []Transaction{tx(100, minutesAgo(50), "BR"), tx(100, minutesAgo(5), "BR")}
	blocked := NewLocations("USA")

	historyCopy := append([]Transaction(nil), history...)
	candidateCopy := candidate

	Evaluate(candidate, history, blocked)

	assert.Equal(t, historyCopy, history)
	assert.Equal(t, candidateCopy, candidate)
	assert.Len(t, blocked, 1)
}

func TestEvaluateDetailed_TriggeredInTableOrder(t *testing.T) {
	candidate := tx(10001, now, "USA")
	history := append(burst(11, 0, 5, "USA"), tx(100, minutesAgo(3), "BR"))

	_, triggered := NewEvaluator().EvaluateDetailed(candidate, history, NewLocations("USA"))
	assert.Equal(t, []string{RuleLargeAmount, RuleVelocity, RuleLocationJump, RuleBlockedLocation}, triggered)
}

func TestWithRules_CustomRule(t *testing.T) {
	nightOwl := Rule{
		Name:   "night",
		Points: 15,
		Effect: EffectVerify,
		Match:  func(in Input) bool { return in.Transaction.Timestamp.Hour() < 6 },
	}
	e := NewEvaluator(WithRules(append(DefaultRules(), nightOwl)...))
	require.Len(t, e.Rules(), 5)

	res := e.Evaluate(tx(100, time.Date(2024, 10, 1, 3, 0, 0, 0, time.UTC), "BR"), nil, nil)
	assert.Equal(t, Result{IsFraudulent: true, VerificationRequired: true, RiskScore: 15}, res)
}

func TestRules_ReturnsCopy(t *testing.T) {
	e := NewEvaluator()
	rules := e.Rules()
	rules[0].Points = 0
	assert.Equal(t, LargeAmountPoints, e.Rules()[0].Points)
}

func TestResult_Outcome(t *testing.T) {
	assert.Equal(t, "clear", Result{}.Outcome())
	assert.Equal(t, "verify", Result{IsFraudulent: true}.Outcome())
	assert.Equal(t, "blocked", Result{IsBlocked: true}.Outcome())
	assert.Equal(t, "blocked_fraud", Result{IsBlocked: true, IsFraudulent: true}.Outcome())
}

func TestEffect_String(t *testing.T) {
	assert.Equal(t, "block", EffectBlock.String())
	assert.Equal(t, "verify", EffectVerify.String())
	assert.Equal(t, "block+verify", (EffectBlock | EffectVerify).String())
	assert.Equal(t, "none", Effect(0).String())
}
