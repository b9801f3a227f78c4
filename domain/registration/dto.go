package registration

import (
	"strings"

	"github.com/akeren/event-referrals/internal/models"
	"github.com/akeren/event-referrals/pkg/reward"
	"github.com/akeren/event-referrals/pkg/utils"
)

const EventName = "Natale con i Cuccioli"

// maxReferredByLength is well above any issued code; longer values cannot
// match a registration and are dropped like any other unknown code.
const maxReferredByLength = 64

// ========================================
// Request DTOs
// ========================================

// CreateRegistrationRequest is validated by the service after trimming, so the
// rules live in `validate` tags rather than gin `binding` tags.
type CreateRegistrationRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=255"`
	LastName        string `json:"last_name" validate:"required,max=255"`
	City            string `json:"city" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Phone           string `json:"phone" validate:"required,max=50"`
	Participants    int    `json:"participants" validate:"gte=1,lte=8"`
	TimeSlot        string `json:"time_slot" validate:"required,timeslot"`
	PrivacyAccepted bool   `json:"privacy_accepted"`
	ReferredBy      string `json:"referred_by"`
}

// Normalize returns a copy with every text field trimmed and the email
// lower-cased. An over-long referral code is cleared.
func (req CreateRegistrationRequest) Normalize() CreateRegistrationRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.City = strings.TrimSpace(req.City)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.TimeSlot = strings.TrimSpace(req.TimeSlot)
	req.ReferredBy = strings.TrimSpace(req.ReferredBy)
	if len(req.ReferredBy) > maxReferredByLength {
		req.ReferredBy = ""
	}
	return req
}

// ========================================
// Response DTOs
// ========================================

type RegistrationResponse struct {
	ID           string `json:"id"`
	ReferralCode string `json:"referral_code"`
	ShareLink    string `json:"share_link,omitempty"`
	WhatsAppLink string `json:"whatsapp_link,omitempty"`
	StatusURL    string `json:"status_url,omitempty"`
}

// ErrorResponse lets the form distinguish failures without parsing messages.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
}

type RegistrationOptionsResponse struct {
	Event           string   `json:"event"`
	TimeSlots       []string `json:"time_slots"`
	MinParticipants int      `json:"min_participants"`
	MaxParticipants int      `json:"max_participants"`
	RewardThreshold int      `json:"reward_threshold"`
}

// ========================================
// Mappers
// ========================================

func ToRegistrationModel(req *CreateRegistrationRequest) *models.Registration {
	if req == nil {
		return nil
	}
	return &models.Registration{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		City:            req.City,
		Email:           req.Email,
		Phone:           req.Phone,
		Participants:    req.Participants,
		TimeSlot:        req.TimeSlot,
		PrivacyAccepted: req.PrivacyAccepted,
		ReferredBy:      utils.TrimToNil(req.ReferredBy),
	}
}

func ToRegistrationResponse(registration *models.Registration) RegistrationResponse {
	if registration == nil {
		return RegistrationResponse{}
	}
	return RegistrationResponse{
		ID:           registration.ID,
		ReferralCode: registration.ReferralCode,
	}
}

func NewRegistrationOptionsResponse() RegistrationOptionsResponse {
	slots := make([]string, len(models.TimeSlots))
	copy(slots, models.TimeSlots)

	return RegistrationOptionsResponse{
		Event:           EventName,
		TimeSlots:       slots,
		MinParticipants: models.MinParticipants,
		MaxParticipants: models.MaxParticipants,
		RewardThreshold: reward.Threshold,
	}
}
