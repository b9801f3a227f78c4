package registration

import (
	"context"
	"sync"
	"testing"

	"github.com/akeren/event-referrals/internal/models"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"github.com/akeren/event-referrals/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.ModelRegistry...))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newRegistration(email string) *models.Registration {
	return &models.Registration{
		FirstName:       "Marco",
		LastName:        "Bianchi",
		City:            "Pantigliate",
		Email:           email,
		Phone:           "+39 02 1234567",
		Participants:    2,
		TimeSlot:        "10:00-11:00",
		PrivacyAccepted: true,
	}
}

func TestRegistrationRepository_CreateRegistration(t *testing.T) {
	db := openTestDB(t)
	repo := NewRegistrationRepository(db)
	ctx := context.Background()

	created, err := repo.CreateRegistration(ctx, newRegistration("marco@example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Len(t, created.ReferralCode, 10)
	assert.Equal(t, 0, created.ReferralCount)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.CreateRegistration(ctx, newRegistration("marco@example.com"))

		assert.ErrorIs(t, err, ErrDuplicateEmail)
		assert.Equal(t, "this email is already registered", apperrors.GetHumanReadableMessage(err))
	})

	t.Run("referral code collision is not a duplicate email", func(t *testing.T) {
		clash := newRegistration("other@example.com")
		clash.ReferralCode = created.ReferralCode

		_, err := repo.CreateRegistration(ctx, clash)

		assert.ErrorIs(t, err, ErrRegistrationFailed)
		assert.NotErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("referred_by is stored as given", func(t *testing.T) {
		referred := newRegistration("friend@example.com")
		referred.ReferredBy = utils.TrimToNil(created.ReferralCode)

		stored, err := repo.CreateRegistration(ctx, referred)
		require.NoError(t, err)
		require.NotNil(t, stored.ReferredBy)
		assert.Equal(t, created.ReferralCode, *stored.ReferredBy)
	})
}

func TestRegistrationRepository_IncrementReferralCount(t *testing.T) {
	db := openTestDB(t)
	repo := NewRegistrationRepository(db)
	ctx := context.Background()

	referrer, err := repo.CreateRegistration(ctx, newRegistration("referrer@example.com"))
	require.NoError(t, err)

	count, err := repo.IncrementReferralCount(ctx, referrer.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("unknown code", func(t *testing.T) {
		_, err := repo.IncrementReferralCount(ctx, "NOSUCHCODE")

		assert.ErrorIs(t, err, ErrReferralCodeNotFound)
		assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.GetErrorType(err))
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		const workers = 20

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.IncrementReferralCount(ctx, referrer.ReferralCode)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		var stored models.Registration
		require.NoError(t, db.Where("referral_code = ?", referrer.ReferralCode).First(&stored).Error)
		assert.Equal(t, workers+1, stored.ReferralCount)
	})
}

func TestRegistrationRepository_ClosedDatabase(t *testing.T) {
	db := openTestDB(t)
	repo := NewRegistrationRepository(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.CreateRegistration(context.Background(), newRegistration("late@example.com"))

	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, apperrors.StatusServiceUnavailable, apperrors.HTTPStatusCode(err))
}
