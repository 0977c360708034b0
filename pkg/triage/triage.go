// Package triage implements the document-triage capability behind the
// governance gate: a deterministic keyword scorer driven by a signal
// bundle, producing a classification, a confidence, and an
// explainability trail.
package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Capability statuses emitted by the classifier. The gate only lets
// "ok" and "needs_review" through to governance.
const (
	StatusOK          = "ok"
	StatusNeedsReview = "needs_review"
)

// Classification labels.
const (
	ClassNonRisk       = "non-risk"
	ClassPotentialRisk = "potential-risk"
	ClassHighRisk      = "high-risk"
)

// Policy rule identifiers recorded in the explainability trail.
const (
	RuleHighRisk       = "R1_HIGH_RISK"
	RulePotentialRisk  = "R2_POTENTIAL_RISK"
	RuleLowRisk        = "R3_LOW_RISK"
	RuleConfidenceGate = "R4_HITL_CONFIDENCE_GATE"
)

// Score thresholds for the policy rules.
const (
	highRiskThreshold      = 0.75
	potentialRiskThreshold = 0.45
	confidenceGate         = 0.6
)

// Explanation is one entry in the explainability trail: a matched
// signal with its weight, or a policy rule with weight 0.
type Explanation struct {
	Rule   string  `json:"rule"`
	Signal string  `json:"signal"`
	Weight float64 `json:"weight"`
}

// Result is the classifier's output for one document.
type Result struct {
	RunID          string         `json:"run_id"`
	Status         string         `json:"status"`
	Classification string         `json:"classification"`
	Confidence     float64        `json:"confidence"`
	NeedsHuman     bool           `json:"needs_human"`
	Explainability []Explanation  `json:"explainability"`
	Meta           map[string]any `json:"meta"`
}

// Classifier produces a triage result for a request payload.
type Classifier interface {
	Classify(ctx context.Context, payload map[string]any) (*Result, error)
}

// KeywordClassifier scores document text by substring-matching weighted
// signals from a Bundle. Matching is case-insensitive; the score is the
// clamped sum of matched weights and doubles as the confidence.
type KeywordClassifier struct {
	bundle *Bundle
}

// NewKeywordClassifier creates a classifier over the given bundle.
func NewKeywordClassifier(bundle *Bundle) *KeywordClassifier {
	return &KeywordClassifier{bundle: bundle}
}

func (c *KeywordClassifier) Classify(ctx context.Context, payload map[string]any) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, _ := payload["text"].(string)

	score, explain := c.scoreText(text)
	confidence := score

	classification := ClassNonRisk
	needsHuman := false
	status := StatusOK
	primaryRule := RuleLowRisk

	switch {
	case score >= highRiskThreshold:
		classification = ClassHighRisk
		needsHuman = true
		status = StatusNeedsReview
		primaryRule = RuleHighRisk
	case score >= potentialRiskThreshold:
		classification = ClassPotentialRisk
		needsHuman = true
		status = StatusNeedsReview
		primaryRule = RulePotentialRisk
	}

	explain = append(explain, Explanation{Rule: "POLICY_PRIMARY", Signal: primaryRule})

	// Low-confidence gate: always forces a human into the loop,
	// regardless of the primary classification.
	if confidence < confidenceGate {
		needsHuman = true
		status = StatusNeedsReview
		explain = append(explain, Explanation{Rule: "POLICY_GATE", Signal: RuleConfidenceGate})
	}

	return &Result{
		RunID:          uuid.NewString(),
		Status:         status,
		Classification: classification,
		Confidence:     confidence,
		NeedsHuman:     needsHuman,
		Explainability: explain,
		Meta: map[string]any{
			"score":      score,
			"capability": c.bundle.Capability,
		},
	}, nil
}

func (c *KeywordClassifier) scoreText(text string) (float64, []Explanation) {
	t := strings.ToLower(text)
	var explain []Explanation
	score := 0.0

	match := func(rule string, signals []Signal) {
		for _, s := range signals {
			sig := strings.ToLower(s.Signal)
			if sig != "" && strings.Contains(t, sig) {
				score += s.Weight
				explain = append(explain, Explanation{Rule: rule, Signal: sig, Weight: s.Weight})
			}
		}
	}

	match("HIGH_RISK_SIGNAL", c.bundle.Keywords.HighRiskSignals)
	match("POTENTIAL_RISK_SIGNAL", c.bundle.Keywords.PotentialRiskSignals)
	match("SAFE_SIGNAL", c.bundle.Keywords.SafeSignals)

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, explain
}

// ErrorResult builds the error-status result the gate returns when the
// capability itself fails, keyed to the same run when one was assigned.
func ErrorResult(runID string, err error) *Result {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Result{
		RunID:          runID,
		Status:         "error",
		Classification: ClassNonRisk,
		Meta:           map[string]any{"error": fmt.Sprint(err)},
	}
}
