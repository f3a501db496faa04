package contacts

import "github.com/sells-group/buyer-sync/internal/model"

// OutcomeKind is what the sync does with a resolved facility.
type OutcomeKind int

const (
	// OutcomeCommit writes the contact and its provenance.
	OutcomeCommit OutcomeKind = iota + 1
	// OutcomeQueue holds the result for human review without writing.
	OutcomeQueue
	// OutcomeSkipProtected leaves a protected verified contact untouched.
	OutcomeSkipProtected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCommit:
		return "commit"
	case OutcomeQueue:
		return "queue"
	case OutcomeSkipProtected:
		return "skip_protected"
	default:
		return "unknown"
	}
}

// Outcome is the decision for one facility. Reason is set for OutcomeQueue,
// and for OutcomeCommit when AlsoQueue is true.
type Outcome struct {
	Kind      OutcomeKind
	Tier      model.Tier
	Score     int
	AlsoQueue bool
	Reason    model.ReasonCode
}

// DecisionInput is everything Decide looks at.
type DecisionInput struct {
	Phone     string
	Website   string
	Tier      model.Tier
	Score     int
	WebsiteOK bool

	CurrentTier       model.Tier
	CurrentConfidence int
	AcceptanceBar     int
}

// Decide picks the outcome for a resolved facility. Rules apply in order;
// the first that matches wins.
func Decide(in DecisionInput) Outcome {
	switch {
	case in.Phone == "" || in.Website == "":
		return Outcome{Kind: OutcomeQueue, Reason: model.ReasonPhoneMissing, Tier: in.Tier, Score: in.Score}
	case in.Tier == model.TierUnverified:
		return Outcome{Kind: OutcomeQueue, Reason: model.ReasonMultipleMatches, Tier: in.Tier, Score: in.Score}
	case !in.WebsiteOK && in.Score < model.VerifiedThreshold:
		return Outcome{Kind: OutcomeQueue, Reason: model.ReasonDomainMismatch, Tier: in.Tier, Score: in.Score}
	case model.Protects(in.CurrentTier, in.CurrentConfidence, in.AcceptanceBar, in.Score):
		return Outcome{Kind: OutcomeSkipProtected, Tier: in.Tier, Score: in.Score}
	}

	out := Outcome{Kind: OutcomeCommit, Tier: in.Tier, Score: in.Score}
	if in.Tier == model.TierNeedsReview {
		out.AlsoQueue = true
		out.Reason = model.ReasonMultipleMatches
	}
	return out
}
