package referral

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=referral

import (
	"context"
	"errors"

	"github.com/akeren/event-referrals/internal/models"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"gorm.io/gorm"
)

var ErrReferralCodeNotFound = errors.New("referral code not found")

type ReferralRepository interface {
	// FindReferralCount returns the referral count of the registration owning
	// code, or a not-found error.
	FindReferralCount(ctx context.Context, code string) (int, error)
}

type referralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (rr *referralRepository) FindReferralCount(ctx context.Context, code string) (int, error) {
	var registration models.Registration

	err := rr.db.WithContext(ctx).
		Select("referral_count").
		Where("referral_code = ?", code).
		Take(&registration).Error

	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return 0, apperrors.NewNotFoundError("referral code not found", ErrReferralCodeNotFound)
		case apperrors.IsConnectionError(err):
			return 0, apperrors.NewServiceUnavailableError("Connection error, please try again", err)
		default:
			return 0, apperrors.NewDatabaseError("failed to fetch referral status", err)
		}
	}

	return registration.ReferralCount, nil
}
