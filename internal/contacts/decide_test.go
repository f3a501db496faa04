package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/buyer-sync/internal/model"
)

func TestDecide(t *testing.T) {
	base := DecisionInput{
		Phone:         "(701) 282-9400",
		Website:       "https://www.chsinc.com/",
		Tier:          model.TierVerified,
		Score:         95,
		WebsiteOK:     true,
		AcceptanceBar: 90,
	}

	tests := []struct {
		name   string
		mutate func(*DecisionInput)
		want   Outcome
	}{
		{
			name: "verified commits",
			want: Outcome{Kind: OutcomeCommit, Tier: model.TierVerified, Score: 95},
		},
		{
			name: "missing phone queues",
			mutate: func(in *DecisionInput) {
				in.Phone = ""
			},
			want: Outcome{Kind: OutcomeQueue, Reason: model.ReasonPhoneMissing, Tier: model.TierVerified, Score: 95},
		},
		{
			name: "missing website queues as phone_missing",
			mutate: func(in *DecisionInput) {
				in.Website = ""
			},
			want: Outcome{Kind: OutcomeQueue, Reason: model.ReasonPhoneMissing, Tier: model.TierVerified, Score: 95},
		},
		{
			name: "unverified queues",
			mutate: func(in *DecisionInput) {
				in.Tier, in.Score = model.TierUnverified, 60
			},
			want: Outcome{Kind: OutcomeQueue, Reason: model.ReasonMultipleMatches, Tier: model.TierUnverified, Score: 60},
		},
		{
			name: "website mismatch below verified queues",
			mutate: func(in *DecisionInput) {
				in.Tier, in.Score, in.WebsiteOK = model.TierNeedsReview, 75, false
			},
			want: Outcome{Kind: OutcomeQueue, Reason: model.ReasonDomainMismatch, Tier: model.TierNeedsReview, Score: 75},
		},
		{
			name: "website mismatch at verified commits",
			mutate: func(in *DecisionInput) {
				in.WebsiteOK = false
			},
			want: Outcome{Kind: OutcomeCommit, Tier: model.TierVerified, Score: 95},
		},
		{
			name: "protected verified contact skipped",
			mutate: func(in *DecisionInput) {
				in.Tier, in.Score = model.TierNeedsReview, 85
				in.CurrentTier, in.CurrentConfidence = model.TierVerified, 92
			},
			want: Outcome{Kind: OutcomeSkipProtected, Tier: model.TierNeedsReview, Score: 85},
		},
		{
			name: "verified result replaces protected contact",
			mutate: func(in *DecisionInput) {
				in.CurrentTier, in.CurrentConfidence = model.TierVerified, 99
			},
			want: Outcome{Kind: OutcomeCommit, Tier: model.TierVerified, Score: 95},
		},
		{
			name: "verified contact below bar is not protected",
			mutate: func(in *DecisionInput) {
				in.Tier, in.Score = model.TierNeedsReview, 85
				in.CurrentTier, in.CurrentConfidence = model.TierVerified, 80
			},
			want: Outcome{Kind: OutcomeCommit, Tier: model.TierNeedsReview, Score: 85, AlsoQueue: true, Reason: model.ReasonMultipleMatches},
		},
		{
			name: "needs review commits and queues",
			mutate: func(in *DecisionInput) {
				in.Tier, in.Score = model.TierNeedsReview, 80
			},
			want: Outcome{Kind: OutcomeCommit, Tier: model.TierNeedsReview, Score: 80, AlsoQueue: true, Reason: model.ReasonMultipleMatches},
		},
		{
			name: "missing phone wins over unverified",
			mutate: func(in *DecisionInput) {
				in.Phone = ""
				in.Tier, in.Score = model.TierUnverified, 20
			},
			want: Outcome{Kind: OutcomeQueue, Reason: model.ReasonPhoneMissing, Tier: model.TierUnverified, Score: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			assert.Equal(t, tt.want, Decide(in))
		})
	}
}

func TestOutcomeKind_String(t *testing.T) {
	assert.Equal(t, "commit", OutcomeCommit.String())
	assert.Equal(t, "queue", OutcomeQueue.String())
	assert.Equal(t, "skip_protected", OutcomeSkipProtected.String())
	assert.Equal(t, "unknown", OutcomeKind(0).String())
}
