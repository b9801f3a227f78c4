// Package notify delivers best-effort "registration created" notifications to
// the external confirmation endpoint, either directly or through a queue.
package notify

import (
	"context"

	"github.com/akeren/event-referrals/internal/models"
)

// RegistrationEvent is the JSON body posted to the notification endpoint.
type RegistrationEvent struct {
	RegistrationID string `json:"registration_id"`
	Email          string `json:"email"`
	ReferralCode   string `json:"referral_code"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Phone          string `json:"phone"`
	Participants   int    `json:"participants"`
	TimeSlot       string `json:"time_slot"`
}

// NewRegistrationEvent maps a persisted registration. It must only be called
// with the row returned by the store, never with the pre-insert candidate.
func NewRegistrationEvent(registration *models.Registration) RegistrationEvent {
	if registration == nil {
		return RegistrationEvent{}
	}

	return RegistrationEvent{
		RegistrationID: registration.ID,
		Email:          registration.Email,
		ReferralCode:   registration.ReferralCode,
		FirstName:      registration.FirstName,
		LastName:       registration.LastName,
		Phone:          registration.Phone,
		Participants:   registration.Participants,
		TimeSlot:       registration.TimeSlot,
	}
}

//go:generate mockgen -source=notifier.go -destination=mock_notifier.go -package=notify -exclude_interfaces=Logger

type Notifier interface {
	Notify(ctx context.Context, event RegistrationEvent) error
}

// NoopNotifier is used when no endpoint is configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, RegistrationEvent) error {
	return nil
}

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
