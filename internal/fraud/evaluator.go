package fraud

// Evaluator runs a rule table over a transaction snapshot. It holds no mutable
// state and is safe for concurrent use.
type Evaluator struct {
	rules []Rule
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRules replaces the default rule table.
func WithRules(rules ...Rule) Option {
	return func(e *Evaluator) {
		e.rules = append([]Rule(nil), rules...)
	}
}

// NewEvaluator creates an evaluator using DefaultRules unless overridden.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = NewEvaluator()

// Evaluate scores tx with the default rule table.
func Evaluate(tx Transaction, history []Transaction, blocked Locations) Result {
	return defaultEvaluator.Evaluate(tx, history, blocked)
}

// Rules returns a copy of the evaluator's rule table.
func (e *Evaluator) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate scores tx against history and the blocked set.
func (e *Evaluator) Evaluate(tx Transaction, history []Transaction, blocked Locations) Result {
	res, _ := e.EvaluateDetailed(tx, history, blocked)
	return res
}

// EvaluateDetailed is Evaluate plus the names of the rules that fired, in
// table order. Every rule is matched; there is no short-circuit.
func (e *Evaluator) EvaluateDetailed(tx Transaction, history []Transaction, blocked Locations) (Result, []string) {
	in := Input{Transaction: tx, History: history, Blocked: blocked}

	var (
		res       Result
		score     int
		effects   Effect
		triggered []string
	)
	for _, r := range e.rules {
		if !r.Match(in) {
			continue
		}
		score += r.Points
		effects |= r.Effect
		triggered = append(triggered, r.Name)
	}

	if score > MaxRiskScore {
		score = MaxRiskScore
	}
	res.RiskScore = score
	res.IsBlocked = effects&EffectBlock != 0
	res.IsFraudulent = effects&EffectVerify != 0
	res.VerificationRequired = res.IsFraudulent
	return res, triggered
}
