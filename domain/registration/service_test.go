package registration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/akeren/event-referrals/internal/log"
	"github.com/akeren/event-referrals/internal/models"
	"github.com/akeren/event-referrals/internal/notify"
	"github.com/akeren/event-referrals/pkg/constants"
	apperrors "github.com/akeren/event-referrals/pkg/errors"
	"github.com/akeren/event-referrals/pkg/pubsub"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type serviceFixture struct {
	repo      *MockRegistrationRepository
	notifier  *notify.MockNotifier
	publisher *MockUpdatePublisher
	cache     *MockStatusCache
	service   RegistrationService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	ctrl := gomock.NewController(t)

	f := &serviceFixture{
		repo:      NewMockRegistrationRepository(ctrl),
		notifier:  notify.NewMockNotifier(ctrl),
		publisher: NewMockUpdatePublisher(ctrl),
		cache:     NewMockStatusCache(ctrl),
	}

	f.service = NewRegistrationService(log.NewLoggerWithJSONOutput(), f.repo, Dependencies{
		Notifier:  f.notifier,
		Publisher: f.publisher,
		Cache:     f.cache,
		Metrics:   NewMetrics(prometheus.NewRegistry()),
	})

	return f
}

func validRequest() *CreateRegistrationRequest {
	return &CreateRegistrationRequest{
		FirstName:       "  Giulia ",
		LastName:        "Rossi",
		City:            "Milano ",
		Email:           " Giulia.Rossi@Example.com ",
		Phone:           " +39 333 1234567",
		Participants:    3,
		TimeSlot:        "11:00-12:00",
		PrivacyAccepted: true,
	}
}

func persist(id, code string) func(context.Context, *models.Registration) (*models.Registration, error) {
	return func(_ context.Context, r *models.Registration) (*models.Registration, error) {
		r.ID = id
		r.ReferralCode = code
		return r, nil
	}
}

func TestRegistrationService_Register_ConsentRequired(t *testing.T) {
	t.Run("rejected before any store access", func(t *testing.T) {
		f := newServiceFixture(t)

		req := validRequest()
		req.PrivacyAccepted = false

		result, err := f.service.Register(context.Background(), req)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrConsentRequired)
		assert.Equal(t, apperrors.StatusBadRequest, apperrors.HTTPStatusCode(err))
		assert.Equal(t, CodeConsentRequired, ErrorCode(err))
	})

	t.Run("takes precedence over invalid fields", func(t *testing.T) {
		f := newServiceFixture(t)

		req := &CreateRegistrationRequest{Email: "not-an-email", Participants: 99}

		_, err := f.service.Register(context.Background(), req)

		assert.ErrorIs(t, err, ErrConsentRequired)
	})
}

func TestRegistrationService_Register_Validation(t *testing.T) {
	cases := map[string]func(*CreateRegistrationRequest){
		"whitespace first name": func(r *CreateRegistrationRequest) { r.FirstName = "   " },
		"invalid email":         func(r *CreateRegistrationRequest) { r.Email = "giulia-at-example" },
		"zero participants":     func(r *CreateRegistrationRequest) { r.Participants = 0 },
		"too many participants": func(r *CreateRegistrationRequest) { r.Participants = 9 },
		"unknown time slot":     func(r *CreateRegistrationRequest) { r.TimeSlot = "13:00-14:00" },
		"missing phone":         func(r *CreateRegistrationRequest) { r.Phone = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newServiceFixture(t)

			req := validRequest()
			mutate(req)

			result, err := f.service.Register(context.Background(), req)

			assert.Nil(t, result)
			assert.Equal(t, apperrors.StatusBadRequest, apperrors.HTTPStatusCode(err))

			var validationErrs validator.ValidationErrors
			assert.True(t, errors.As(err, &validationErrs))
		})
	}

	t.Run("nil request", func(t *testing.T) {
		f := newServiceFixture(t)

		result, err := f.service.Register(context.Background(), nil)

		assert.Nil(t, result)
		assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
	})
}

func TestRegistrationService_Register_WithoutReferral(t *testing.T) {
	f := newServiceFixture(t)

	var stored *models.Registration
	f.repo.EXPECT().
		CreateRegistration(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, r *models.Registration) (*models.Registration, error) {
			stored = r
			return persist("reg-1", "ABCDEF1234")(ctx, r)
		})

	f.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event notify.RegistrationEvent) error {
			assert.Equal(t, "reg-1", event.RegistrationID)
			assert.Equal(t, "ABCDEF1234", event.ReferralCode)
			assert.Equal(t, "giulia.rossi@example.com", event.Email)
			return nil
		})

	result, err := f.service.Register(context.Background(), validRequest())

	require.NoError(t, err)
	assert.Equal(t, "reg-1", result.ID)
	assert.Equal(t, "ABCDEF1234", result.ReferralCode)

	require.NotNil(t, stored)
	assert.Equal(t, "Giulia", stored.FirstName)
	assert.Equal(t, "Milano", stored.City)
	assert.Equal(t, "giulia.rossi@example.com", stored.Email)
	assert.Equal(t, "+39 333 1234567", stored.Phone)
	assert.Nil(t, stored.ReferredBy)
	assert.True(t, stored.PrivacyAccepted)
}

func TestRegistrationService_Register_OverlongReferralIsIgnored(t *testing.T) {
	f := newServiceFixture(t)

	req := validRequest()
	req.ReferredBy = strings.Repeat("X", maxReferredByLength+1)

	f.repo.EXPECT().
		CreateRegistration(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, r *models.Registration) (*models.Registration, error) {
			assert.Nil(t, r.ReferredBy)
			return persist("reg-9", "CODE000009")(ctx, r)
		})
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	result, err := f.service.Register(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "reg-9", result.ID)
}

func TestNewValidator_RegistersTimeSlotRule(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = newValidator() })

	req := validRequest().Normalize()
	assert.NoError(t, v.Struct(req))

	req.TimeSlot = "09:00-10:00"
	err := v.Struct(req)

	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))
	assert.Equal(t, "timeslot", validationErrs[0].Tag())
}

func TestRegistrationService_Register_WhitespaceReferralIsIgnored(t *testing.T) {
	f := newServiceFixture(t)

	req := validRequest()
	req.ReferredBy = "   "

	f.repo.EXPECT().
		CreateRegistration(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, r *models.Registration) (*models.Registration, error) {
			assert.Nil(t, r.ReferredBy)
			return persist("reg-2", "CODE000002")(ctx, r)
		})
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

	_, err := f.service.Register(context.Background(), req)

	assert.NoError(t, err)
}

func TestRegistrationService_Register_CreditsReferrer(t *testing.T) {
	f := newServiceFixture(t)

	req := validRequest()
	req.ReferredBy = " REFCODE001 "

	gomock.InOrder(
		f.repo.EXPECT().
			CreateRegistration(gomock.Any(), gomock.Any()).
			DoAndReturn(persist("reg-3", "NEWCODE003")),
		f.repo.EXPECT().
			IncrementReferralCount(gomock.Any(), "REFCODE001").
			Return(2, nil),
		f.cache.EXPECT().
			SetMax(gomock.Any(), constants.ReferralStatusCacheKey("REFCODE001"), 2, constants.ReferralStatusCacheTTL).
			Return(true, nil),
		f.publisher.EXPECT().
			Publish(gomock.Any(), pubsub.Update{Code: "REFCODE001", ReferralCount: 2}).
			Return(nil),
		f.notifier.EXPECT().
			Notify(gomock.Any(), gomock.Any()).
			Return(nil),
	)

	result, err := f.service.Register(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "NEWCODE003", result.ReferralCode)
}

func TestRegistrationService_Register_SideEffectFailuresDoNotFailSubmission(t *testing.T) {
	t.Run("unknown referral code", func(t *testing.T) {
		f := newServiceFixture(t)

		req := validRequest()
		req.ReferredBy = "NOSUCHCODE"

		f.repo.EXPECT().CreateRegistration(gomock.Any(), gomock.Any()).DoAndReturn(persist("reg-4", "CODE000004"))
		f.repo.EXPECT().IncrementReferralCount(gomock.Any(), "NOSUCHCODE").Return(0, NewReferralCodeNotFoundError())
		f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

		result, err := f.service.Register(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "reg-4", result.ID)
	})

	t.Run("credit attribution fails", func(t *testing.T) {
		f := newServiceFixture(t)

		req := validRequest()
		req.ReferredBy = "REFCODE001"

		f.repo.EXPECT().CreateRegistration(gomock.Any(), gomock.Any()).DoAndReturn(persist("reg-5", "CODE000005"))
		f.repo.EXPECT().IncrementReferralCount(gomock.Any(), "REFCODE001").
			Return(0, apperrors.NewDatabaseError("unable to credit referral", errors.New("deadlock detected")))
		f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

		result, err := f.service.Register(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, "reg-5", result.ID)
	})

	t.Run("notification fails", func(t *testing.T) {
		f := newServiceFixture(t)

		f.repo.EXPECT().CreateRegistration(gomock.Any(), gomock.Any()).DoAndReturn(persist("reg-6", "CODE000006"))
		f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("webhook returned 502"))

		result, err := f.service.Register(context.Background(), validRequest())

		require.NoError(t, err)
		assert.Equal(t, "reg-6", result.ID)
	})

	t.Run("publish and cache failures", func(t *testing.T) {
		f := newServiceFixture(t)

		req := validRequest()
		req.ReferredBy = "REFCODE001"

		f.repo.EXPECT().CreateRegistration(gomock.Any(), gomock.Any()).DoAndReturn(persist("reg-7", "CODE000007"))
		f.repo.EXPECT().IncrementReferralCount(gomock.Any(), "REFCODE001").Return(1, nil)
		f.cache.EXPECT().SetMax(gomock.Any(), gomock.Any(), 1, gomock.Any()).Return(false, errors.New("redis down"))
		f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(pubsub.ErrBrokerClosed)
		f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil)

		_, err := f.service.Register(context.Background(), req)

		assert.NoError(t, err)
	})
}

func TestRegistrationService_Register_SideEffectsSurviveClientDisconnect(t *testing.T) {
	f := newServiceFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := validRequest()
	req.ReferredBy = "REFCODE001"

	f.repo.EXPECT().
		CreateRegistration(gomock.Any(), gomock.Any()).
		DoAndReturn(func(c context.Context, r *models.Registration) (*models.Registration, error) {
			cancel()
			return persist("reg-8", "CODE000008")(c, r)
		})
	f.repo.EXPECT().
		IncrementReferralCount(gomock.Any(), "REFCODE001").
		DoAndReturn(func(c context.Context, _ string) (int, error) {
			assert.NoError(t, c.Err())
			_, hasDeadline := c.Deadline()
			assert.True(t, hasDeadline)
			return 3, nil
		})
	f.cache.EXPECT().SetMax(gomock.Any(), gomock.Any(), 3, gomock.Any()).Return(true, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	f.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(c context.Context, _ notify.RegistrationEvent) error {
			assert.NoError(t, c.Err())
			return nil
		})

	_, err := f.service.Register(ctx, req)

	assert.NoError(t, err)
}

func TestRegistrationService_Register_StoreFailures(t *testing.T) {
	cases := []struct {
		name     string
		repoErr  error
		sentinel error
		status   int
		code     string
	}{
		{
			name:     "duplicate email",
			repoErr:  NewDuplicateEmailError(errors.New("UNIQUE constraint failed: registrations.email")),
			sentinel: ErrDuplicateEmail,
			status:   apperrors.StatusConflict,
			code:     CodeDuplicateEmail,
		},
		{
			name:     "connection error",
			repoErr:  NewConnectionError(errors.New("dial tcp: connection refused")),
			sentinel: ErrConnection,
			status:   apperrors.StatusServiceUnavailable,
			code:     CodeConnectionError,
		},
		{
			name:     "anything else",
			repoErr:  NewRegistrationFailedError(errors.New("syntax error")),
			sentinel: ErrRegistrationFailed,
			status:   apperrors.StatusInternalServerError,
			code:     CodeRegistrationFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t)

			req := validRequest()
			req.ReferredBy = "REFCODE001"

			// No increment, cache, publish or notify expectations: nothing
			// may run after a failed insert.
			f.repo.EXPECT().CreateRegistration(gomock.Any(), gomock.Any()).Return(nil, tc.repoErr)

			result, err := f.service.Register(context.Background(), req)

			assert.Nil(t, result)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, tc.status, apperrors.HTTPStatusCode(err))
			assert.Equal(t, tc.code, ErrorCode(err))
		})
	}

	t.Run("duplicate message is user facing", func(t *testing.T) {
		err := NewDuplicateEmailError(errors.New("duplicate key value violates unique constraint"))
		assert.Equal(t, "this email is already registered", apperrors.GetHumanReadableMessage(err))
	})
}
