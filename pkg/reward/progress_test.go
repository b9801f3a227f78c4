package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name           string
		count          int
		unlocked       bool
		percent        int
		remaining      int
		remainingLabel string
	}{
		{name: "no referrals", count: 0, percent: 0, remaining: 3, remainingLabel: "3 amici"},
		{name: "one referral", count: 1, percent: 33, remaining: 2, remainingLabel: "2 amici"},
		{name: "two referrals uses singular", count: 2, percent: 66, remaining: 1, remainingLabel: "1 amico"},
		{name: "threshold reached", count: 3, unlocked: true, percent: 100},
		{name: "above threshold is capped", count: 7, unlocked: true, percent: 100},
		{name: "negative treated as zero", count: -2, percent: 0, remaining: 3, remainingLabel: "3 amici"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := ComputeProgress(tt.count)

			assert.Equal(t, Threshold, progress.Threshold)
			assert.Equal(t, tt.unlocked, progress.Unlocked)
			assert.Equal(t, tt.percent, progress.Percent)
			assert.Equal(t, tt.remaining, progress.Remaining)
			assert.Equal(t, tt.remainingLabel, progress.RemainingLabel)
		})
	}
}

func TestComputeProgress_Messages(t *testing.T) {
	assert.Equal(t, "Ancora 3 amici per sbloccare il pass foto gratuito", ComputeProgress(0).Message)
	assert.Equal(t, "Ancora 1 amico per sbloccare il pass foto gratuito", ComputeProgress(2).Message)
	assert.Equal(t, "Complimenti! Hai sbloccato il pass foto gratuito!", ComputeProgress(3).Message)
}

func TestFraction(t *testing.T) {
	assert.Equal(t, 0.0, Fraction(0))
	assert.InDelta(t, 2.0/3.0, Fraction(2), 1e-9)
	assert.Equal(t, 1.0, Fraction(3))
	assert.Equal(t, 1.0, Fraction(10))
}
