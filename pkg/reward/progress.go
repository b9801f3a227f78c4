// Package reward computes referral progress toward the photo-pass reward.
package reward

import (
	"sync"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Threshold is the number of credited referrals that unlocks the photo pass.
const Threshold = 3

const (
	remainingLabelKey   = "reward.remaining.label"
	remainingMessageKey = "reward.remaining.message"
	unlockedMessageKey  = "reward.unlocked.message"
)

var (
	catalogOnce sync.Once
	printer     *message.Printer
)

func italianPrinter() *message.Printer {
	catalogOnce.Do(func() {
		tag := language.Italian

		_ = message.Set(tag, remainingLabelKey, plural.Selectf(1, "%d",
			"=1", "%d amico",
			"other", "%d amici",
		))
		_ = message.Set(tag, remainingMessageKey, plural.Selectf(1, "%d",
			"=1", "Ancora %d amico per sbloccare il pass foto gratuito",
			"other", "Ancora %d amici per sbloccare il pass foto gratuito",
		))
		_ = message.SetString(tag, unlockedMessageKey, "Complimenti! Hai sbloccato il pass foto gratuito!")

		printer = message.NewPrinter(tag)
	})

	return printer
}

type Progress struct {
	Count     int  `json:"referral_count"`
	Threshold int  `json:"threshold"`
	Unlocked  bool `json:"unlocked"`
	Remaining int  `json:"remaining"`
	// Percent is the floored display percentage, capped at 100.
	Percent        int    `json:"progress_percent"`
	RemainingLabel string `json:"remaining_label,omitempty"`
	Message        string `json:"message"`
}

// Fraction returns min(count, Threshold) / Threshold.
func Fraction(count int) float64 {
	if count < 0 {
		count = 0
	}
	if count > Threshold {
		count = Threshold
	}

	return float64(count) / float64(Threshold)
}

func ComputeProgress(count int) Progress {
	if count < 0 {
		count = 0
	}

	p := italianPrinter()

	progress := Progress{
		Count:     count,
		Threshold: Threshold,
		Unlocked:  count >= Threshold,
		Percent:   count * 100 / Threshold,
	}
	if progress.Percent > 100 {
		progress.Percent = 100
	}

	if progress.Unlocked {
		progress.Message = p.Sprintf(unlockedMessageKey)
		return progress
	}

	progress.Remaining = Threshold - count
	progress.RemainingLabel = p.Sprintf(remainingLabelKey, progress.Remaining)
	progress.Message = p.Sprintf(remainingMessageKey, progress.Remaining)

	return progress
}
