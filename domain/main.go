package domain

import (
	"github.com/akeren/event-referrals/config"
	"github.com/akeren/event-referrals/domain/monitoring"
	"github.com/akeren/event-referrals/domain/referral"
	"github.com/akeren/event-referrals/domain/registration"
	"github.com/akeren/event-referrals/internal/notify"
	"github.com/akeren/event-referrals/pkg/pubsub"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	if appConfig.Broker == nil {
		appConfig.Broker = pubsub.NewInMemoryBroker()
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	monitoringDeps := monitoring.Dependencies{Broker: appConfig.Broker}

	if appConfig.Notification != nil {
		if appConfig.Notification.Notifier != nil {
			notifier = appConfig.Notification.Notifier
		}
		if appConfig.Notification.Queue != nil {
			monitoringDeps.MessageQueue = appConfig.Notification.Queue
		}
	}

	publicOrigin := ""
	if appConfig.Config != nil {
		publicOrigin = appConfig.Config.PublicOrigin
	}

	registrationOptions := registration.ControllerOptions{
		Notifier:     notifier,
		Publisher:    appConfig.Broker,
		PublicOrigin: publicOrigin,
	}
	referralOptions := referral.ControllerOptions{
		Subscriber:   appConfig.Broker,
		PublicOrigin: publicOrigin,
	}

	if appConfig.Cache != nil {
		monitoringDeps.Cache = appConfig.Cache
		registrationOptions.Cache = appConfig.Cache
		referralOptions.Cache = appConfig.Cache
	}

	appConfig.RouterService.MountController(monitoring.NewMonitoringController(appConfig.DB, appConfig.Logger, monitoringDeps))
	appConfig.RouterService.MountController(registration.NewRegistrationController(appConfig.DB, appConfig.Logger, registrationOptions))
	appConfig.RouterService.MountController(referral.NewReferralController(appConfig.DB, appConfig.Logger, referralOptions))
}
