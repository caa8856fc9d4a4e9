package monitoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NotificationRouter maps an alert and an action to a transport call and
// records the outcome. Delivery is never retried here.
type NotificationRouter struct {
	transports map[ActionType]Transport
	store      Store
	recorder   Recorder
	clock      Clock
	logger     *logrus.Logger
	mu         sync.RWMutex
}

// NewNotificationRouter creates a router with no transports registered
func NewNotificationRouter(store Store, logger *logrus.Logger) *NotificationRouter {
	return &NotificationRouter{
		transports: make(map[ActionType]Transport),
		store:      store,
		recorder:   nopRecorder{},
		clock:      SystemClock(),
		logger:     logger,
	}
}

// Register binds a transport to an action type, replacing any previous one
func (r *NotificationRouter) Register(actionType ActionType, transport Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[actionType] = transport
}

// SetRecorder sets the metrics recorder
func (r *NotificationRouter) SetRecorder(recorder Recorder) {
	if recorder != nil {
		r.recorder = recorder
	}
}

// SetClock overrides the clock used for attempt timestamps
func (r *NotificationRouter) SetClock(clock Clock) {
	if clock != nil {
		r.clock = clock
	}
}

// ExecuteAction delivers the alert through the action's transport if the
// alert severity is allowed by the action. It returns nil when the action
// was skipped, otherwise the recorded notification.
func (r *NotificationRouter) ExecuteAction(ctx context.Context, alert *Alert, action AlertAction, kind NotificationKind, step int) *AlertNotification {
	if !action.Matches(alert.Severity) {
		return nil
	}

	notification := &AlertNotification{
		ID:             uuid.New().String(),
		AlertID:        alert.ID,
		Channel:        action.Type,
		Recipient:      action.RedactedRecipient(),
		Kind:           kind,
		EscalationStep: step,
		Status:         NotificationPending,
		Attempts:       1,
		LastAttempt:    r.clock.Now(),
	}

	r.mu.RLock()
	transport, ok := r.transports[action.Type]
	r.mu.RUnlock()

	if !ok {
		notification.Status = NotificationFailed
		notification.Error = fmt.Sprintf("no transport registered for %s", action.Type)
	} else if response, err := transport.Send(withDelivery(ctx, kind, step), action.Recipient(), alert, action); err != nil {
		notification.Status = NotificationFailed
		notification.Error = err.Error()
		notification.Response = response
	} else {
		notification.Status = NotificationSent
		notification.Response = response
	}

	entry := r.logger.WithFields(logrus.Fields{
		"alert_id":  alert.ID,
		"channel":   notification.Channel,
		"recipient": notification.Recipient,
		"kind":      kind,
		"status":    notification.Status,
	})
	if notification.Status == NotificationFailed {
		entry.WithField("error", notification.Error).Warn("Alert notification failed")
	} else {
		entry.Debug("Alert notification sent")
	}

	r.recorder.NotificationRecorded(notification.Channel, notification.Status)

	if r.store != nil {
		if err := r.store.SaveNotification(ctx, notification); err != nil {
			r.logger.WithError(err).WithField("notification_id", notification.ID).Error("Failed to save alert notification")
		}
	}

	return notification
}

// ExecuteActions runs every action and returns the notifications recorded
func (r *NotificationRouter) ExecuteActions(ctx context.Context, alert *Alert, actions []AlertAction, kind NotificationKind, step int) []*AlertNotification {
	var out []*AlertNotification
	for _, action := range actions {
		if n := r.ExecuteAction(ctx, alert, action, kind, step); n != nil {
			out = append(out, n)
		}
	}
	return out
}

type deliveryKey struct{}

type delivery struct {
	kind NotificationKind
	step int
}

func withDelivery(ctx context.Context, kind NotificationKind, step int) context.Context {
	return context.WithValue(ctx, deliveryKey{}, delivery{kind: kind, step: step})
}

// DeliveryFromContext returns the notification kind and escalation step a
// transport is sending for. Outside a router call it reports KindAlert.
func DeliveryFromContext(ctx context.Context) (NotificationKind, int) {
	if d, ok := ctx.Value(deliveryKey{}).(delivery); ok {
		return d.kind, d.step
	}
	return KindAlert, 0
}
