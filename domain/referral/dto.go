package referral

import (
	"github.com/akeren/event-referrals/pkg/reward"
	"github.com/akeren/event-referrals/pkg/sharelink"
)

type StatusResponse struct {
	Code            string `json:"code"`
	ReferralCount   int    `json:"referral_count"`
	Threshold       int    `json:"threshold"`
	Unlocked        bool   `json:"unlocked"`
	Remaining       int    `json:"remaining"`
	ProgressPercent int    `json:"progress_percent"`
	Message         string `json:"message"`
	ShareLink       string `json:"share_link,omitempty"`
	WhatsAppLink    string `json:"whatsapp_link,omitempty"`
}

// NewStatusResponse derives the reward progress for count.
func NewStatusResponse(code string, count int) StatusResponse {
	progress := reward.ComputeProgress(count)

	return StatusResponse{
		Code:            code,
		ReferralCount:   progress.Count,
		Threshold:       progress.Threshold,
		Unlocked:        progress.Unlocked,
		Remaining:       progress.Remaining,
		ProgressPercent: progress.Percent,
		Message:         progress.Message,
	}
}

// WithLinks fills the share links for origin. An empty code has nothing to share.
func (r StatusResponse) WithLinks(origin string) StatusResponse {
	if r.Code == "" {
		return r
	}
	r.ShareLink = sharelink.Build(origin, r.Code)
	r.WhatsAppLink = sharelink.WhatsApp(r.ShareLink)
	return r
}
