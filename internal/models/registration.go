package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Published visit windows for the event.
var TimeSlots = []string{
	"10:00-11:00",
	"11:00-12:00",
	"12:00-13:00",
	"15:00-16:00",
	"16:00-17:00",
}

const (
	MinParticipants = 1
	MaxParticipants = 8
)

const referralCodeLength = 10

type Registration struct {
	ID              string    `gorm:"type:text;primaryKey" json:"id"`
	FirstName       string    `gorm:"not null" json:"first_name"`
	LastName        string    `gorm:"not null" json:"last_name"`
	City            string    `gorm:"not null" json:"city"`
	Email           string    `gorm:"not null;uniqueIndex" json:"email"`
	Phone           string    `gorm:"not null" json:"phone"`
	Participants    int       `gorm:"not null" json:"participants"`
	TimeSlot        string    `gorm:"not null" json:"time_slot"`
	PrivacyAccepted bool      `gorm:"not null" json:"privacy_accepted"`
	ReferredBy      *string   `gorm:"index" json:"referred_by"`
	ReferralCode    string    `gorm:"not null;uniqueIndex" json:"referral_code"`
	ReferralCount   int       `gorm:"not null;default:0" json:"referral_count"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns the store-side identifiers: the row id and the public
// referral code.
func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.ReferralCode == "" {
		r.ReferralCode = NewReferralCode()
	}
	return nil
}

// NewReferralCode returns a short upper-case share token.
func NewReferralCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:referralCodeLength])
}

func IsValidTimeSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}
