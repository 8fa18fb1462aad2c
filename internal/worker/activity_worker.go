package worker

import (
	"github.com/spec-kit/ticket-relay/internal/service"
)

// StartActivityWorker subscribes the activity recorder to domain events.
func StartActivityWorker(activity *service.ActivityService) {
	if activity == nil {
		return
	}
	activity.RegisterHandlers()
}
