package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/verdict/internal/events"
	"github.com/mbd888/verdict/internal/idgen"
	"github.com/mbd888/verdict/internal/logging"
	"github.com/mbd888/verdict/internal/pagination"
	"github.com/mbd888/verdict/internal/traces"
)

// DefaultVerdictTopic is the Kafka topic verdict events are published to.
const DefaultVerdictTopic = "fraud.verdicts"

// ErrBlocklistUnavailable is returned by Check when the configured
// blocklist cannot be read. No verdict is produced in that case.
var ErrBlocklistUnavailable = errors.New("fraud: blocklist unavailable")

// Service wraps the evaluator with blocklist lookup, input validation, an
// audit trail and verdict events. Audit and publish are best-effort: a
// failure is logged and counted but the verdict is still returned.
type Service struct {
	evaluator *Evaluator
	blocklist BlocklistSource
	store     Store
	publisher events.Publisher
	topic     string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a fraud service. store may be nil to disable the audit
// trail; blocklist may be nil to rely on request-supplied locations only.
func NewService(store Store, blocklist BlocklistSource) *Service {
	return &Service{
		evaluator: NewEvaluator(),
		blocklist: blocklist,
		store:     store,
		publisher: events.NopPublisher{},
		topic:     DefaultVerdictTopic,
		now:       time.Now,
	}
}

// WithEvaluator overrides the default evaluator.
func (s *Service) WithEvaluator(e *Evaluator) *Service {
	s.evaluator = e
	return s
}

// WithPublisher sends a verdict event to topic after every check.
func (s *Service) WithPublisher(p events.Publisher, topic string) *Service {
	s.publisher = p
	if topic != "" {
		s.topic = topic
	}
	return s
}

// WithLogger sets the fallback logger used when the context carries none.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	s.logger = l
	return s
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if s.logger != nil {
		return logging.WithDefault(ctx, s.logger)
	}
	return logging.L(ctx)
}

// Check validates req, scores it and records the verdict.
func (s *Service) Check(ctx context.Context, req *CheckRequest) (*Assessment, error) {
	ctx, span := traces.StartSpan(ctx, "fraud.check",
		traces.AccountID(req.AccountID),
		traces.Amount(req.Transaction.Amount.String()),
		traces.HistorySize(len(req.History)),
	)
	defer span.End()

	if err := ValidateRequest(req); err != nil {
		ChecksTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	blocked, err := s.blockedLocations(ctx, req.BlockedLocations)
	if err != nil {
		return nil, err
	}

	res, triggered := s.evaluator.EvaluateDetailed(req.Transaction, req.History, blocked)
	span.SetAttributes(traces.RiskScore(res.RiskScore), traces.Outcome(res.Outcome()))
	observeVerdict(res, triggered)

	a := &Assessment{
		ID:          idgen.WithPrefix("fa_"),
		AccountID:   req.AccountID,
		Transaction: req.Transaction,
		Result:      res,
		Triggered:   triggered,
		EvaluatedAt: s.now().UTC(),
	}
	if a.Triggered == nil {
		a.Triggered = []string{}
	}

	logger := s.log(ctx).With("account_id", a.AccountID, "assessment_id", a.ID)
	logger.Debug("fraud rules evaluated", "triggered", triggered, "risk_score", res.RiskScore)
	if res.IsBlocked || res.IsFraudulent {
		logger.Info("transaction flagged",
			"outcome", res.Outcome(),
			"risk_score", res.RiskScore,
			"triggered", triggered,
		)
	}

	if s.store != nil {
		if err := s.store.Record(ctx, a); err != nil {
			SideEffectFailuresTotal.WithLabelValues("audit").Inc()
			logger.Warn("failed to record fraud assessment", "error", err)
		}
	}
	if err := s.publish(ctx, a); err != nil {
		SideEffectFailuresTotal.WithLabelValues("publish").Inc()
		logger.Warn("failed to publish verdict event", "error", err)
	}

	return a, nil
}

// HistoryPage is one page of an account's assessments.
type HistoryPage struct {
	Assessments []*Assessment
	NextCursor  string
	HasMore     bool
}

// History lists assessments for an account, most recent first. cursor is the
// NextCursor of a previous page, or empty for the first page.
func (s *Service) History(ctx context.Context, accountID string, limit int, cursor string) (*HistoryPage, error) {
	before, err := pagination.Decode(cursor)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return &HistoryPage{}, nil
	}

	fetch := limit
	if limit > 0 {
		fetch = limit + 1
	}
	items, err := s.store.ListByAccount(ctx, accountID, fetch, before)
	if err != nil {
		return nil, err
	}

	page, next, more := pagination.ComputePage(items, limit, func(a *Assessment) (time.Time, string) {
		return a.EvaluatedAt, a.ID
	})
	return &HistoryPage{Assessments: page, NextCursor: next, HasMore: more}, nil
}

// RuleInfo describes one entry of the active rule table.
type RuleInfo struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Effect string `json:"effect"`
}

// Rules describes the active rule table.
func (s *Service) Rules() []RuleInfo {
	rules := s.evaluator.Rules()
	out := make([]RuleInfo, len(rules))
	for i, r := range rules {
		out[i] = RuleInfo{Name: r.Name, Points: r.Points, Effect: r.Effect.String()}
	}
	return out
}

// Blocklist returns the configured source, or nil.
func (s *Service) Blocklist() BlocklistSource {
	return s.blocklist
}

// blockedLocations unions the configured blocklist with request-supplied entries.
func (s *Service) blockedLocations(ctx context.Context, extra []string) (Locations, error) {
	blocked := NewLocations(extra...)
	if s.blocklist == nil {
		return blocked, nil
	}
	configured, err := s.blocklist.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlocklistUnavailable, err)
	}
	for l := range configured {
		blocked[l] = struct{}{}
	}
	return blocked, nil
}

// verdictEvent is the payload published for every check.
type verdictEvent struct {
	AssessmentID string    `json:"assessmentId"`
	AccountID    string    `json:"accountId"`
	Outcome      string    `json:"outcome"`
	Result       Result    `json:"result"`
	Triggered    []string  `json:"triggered"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

func (s *Service) publish(ctx context.Context, a *Assessment) error {
	payload, err := json.Marshal(verdictEvent{
		AssessmentID: a.ID,
		AccountID:    a.AccountID,
		Outcome:      a.Outcome(),
		Result:       a.Result,
		Triggered:    a.Triggered,
		EvaluatedAt:  a.EvaluatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal verdict event: %w", err)
	}
	return s.publisher.Publish(ctx, s.topic, events.Message{
		Key:     []byte(a.AccountID),
		Value:   payload,
		Headers: map[string]string{"event-type": "fraud.verdict"},
	})
}
