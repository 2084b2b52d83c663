package worker

import (
	"github.com/spec-kit/procurement-service/internal/events"
	"github.com/spec-kit/procurement-service/internal/service"
)

// StartNotificationWorker subscribes the notifier to ticket events so every
// submission and decision seen on the bus is dispatched idempotently.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers(dispatcher)
}
