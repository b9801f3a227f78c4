package referral

import (
	"github.com/akeren/event-referrals/internal/log"
	"gorm.io/gorm"
)

type ReferralServiceFactory interface {
	CreateService() ReferralService
}

type DefaultReferralServiceFactory struct {
	db         *gorm.DB
	logger     *log.Logger
	subscriber Subscriber
	cache      StatusCache
}

// NewReferralServiceFactory builds referral services outside the HTTP
// surface, e.g. for the CLI. subscriber and cache may be nil.
func NewReferralServiceFactory(db *gorm.DB, logger *log.Logger, subscriber Subscriber, cache StatusCache) ReferralServiceFactory {
	return &DefaultReferralServiceFactory{
		db:         db,
		logger:     logger,
		subscriber: subscriber,
		cache:      cache,
	}
}

func (f *DefaultReferralServiceFactory) CreateService() ReferralService {
	return NewReferralService(f.logger, NewReferralRepository(f.db), f.subscriber, f.cache)
}
