package registration

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=registration

import (
	"context"
	"errors"
	"strings"

	"github.com/akeren/event-referrals/internal/models"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"gorm.io/gorm"
)

type RegistrationRepository interface {
	// CreateRegistration inserts a registration in a single statement. The
	// unique index on email decides concurrent duplicates.
	CreateRegistration(ctx context.Context, registration *models.Registration) (*models.Registration, error)
	// IncrementReferralCount atomically adds one to the referral count of the
	// registration owning code and returns the new count.
	IncrementReferralCount(ctx context.Context, code string) (int, error)
}

type registrationRepository struct {
	db *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (rr *registrationRepository) CreateRegistration(ctx context.Context, registration *models.Registration) (*models.Registration, error) {
	if err := rr.db.WithContext(ctx).Create(registration).Error; err != nil {
		switch {
		case apperrors.IsConnectionError(err):
			return nil, NewConnectionError(err)
		case isDuplicateKey(err) && !isReferralCodeCollision(err):
			return nil, NewDuplicateEmailError(err)
		default:
			return nil, NewRegistrationFailedError(err)
		}
	}

	return registration, nil
}

func (rr *registrationRepository) IncrementReferralCount(ctx context.Context, code string) (int, error) {
	var count int

	err := rr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Registration{}).
			Where("referral_code = ?", code).
			Update("referral_count", gorm.Expr("referral_count + ?", 1))

		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrReferralCodeNotFound
		}

		var counts []int
		if err := tx.Model(&models.Registration{}).
			Where("referral_code = ?", code).
			Pluck("referral_count", &counts).Error; err != nil {
			return err
		}

		if len(counts) == 0 {
			return ErrReferralCodeNotFound
		}

		count = counts[0]
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, ErrReferralCodeNotFound):
			return 0, NewReferralCodeNotFoundError()
		case apperrors.IsConnectionError(err):
			return 0, NewConnectionError(err)
		default:
			return 0, apperrors.NewDatabaseError("unable to credit referral", err)
		}
	}

	return count, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err)
}

// A generated referral code colliding is not the registrant's fault and must
// not be reported as a duplicate email.
func isReferralCodeCollision(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "referral_code")
}
