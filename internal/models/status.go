package models

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCart              Status = "cart"
	StatusCheckoutStarted   Status = "checkout_started"
	StatusPaymentProcessing Status = "payment_processing"
	StatusPaid              Status = "paid"
	StatusPaymentFailed     Status = "payment_failed"
	StatusPendingSync       Status = "pending_sync"
	StatusSynced            Status = "synced"
	StatusSyncFailed        Status = "sync_failed"
	StatusCancelled         Status = "cancelled"
)

// Terminal reports whether no further event is accepted.
func (s Status) Terminal() bool {
	return s == StatusSynced || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCart, StatusCheckoutStarted, StatusPaymentProcessing, StatusPaid,
		StatusPaymentFailed, StatusPendingSync, StatusSynced, StatusSyncFailed, StatusCancelled:
		return true
	}
	return false
}

// Event drives a transition of the order state machine.
type Event string

const (
	EventStartCheckout    Event = "start_checkout"
	EventMarkProcessing   Event = "mark_processing"
	EventPaymentSucceeded Event = "payment_succeeded"
	EventPaymentFailed    Event = "payment_failed"
	EventEnqueueSync      Event = "enqueue_sync"
	EventCancel           Event = "cancel"
	EventSyncSucceeded    Event = "sync_succeeded"
	EventSyncFailed       Event = "sync_failed_event"
)

// transitions is the full table of legal moves. Cancel is handled
// separately since it applies to every non-terminal status.
var transitions = map[Event]map[Status]Status{
	EventStartCheckout: {
		StatusCart:          StatusCheckoutStarted,
		StatusPaymentFailed: StatusCheckoutStarted,
	},
	EventMarkProcessing: {
		StatusCheckoutStarted: StatusPaymentProcessing,
	},
	EventPaymentSucceeded: {
		StatusPaymentProcessing: StatusPaid,
	},
	EventPaymentFailed: {
		StatusPaymentProcessing: StatusPaymentFailed,
	},
	EventEnqueueSync: {
		StatusPaid: StatusPendingSync,
	},
	EventSyncSucceeded: {
		StatusPendingSync: StatusSynced,
		StatusSyncFailed:  StatusSynced,
	},
	EventSyncFailed: {
		StatusPendingSync: StatusSyncFailed,
		StatusSyncFailed:  StatusSyncFailed,
	},
}

// Next returns the status reached by applying ev to from, and false when
// the move is not in the table.
func Next(from Status, ev Event) (Status, bool) {
	if ev == EventCancel {
		if !from.Valid() || from.Terminal() {
			return from, false
		}
		return StatusCancelled, true
	}
	to, ok := transitions[ev][from]
	if !ok {
		return from, false
	}
	return to, true
}

// FollowUp returns the event fired automatically after entering s.
// Reaching paid always enqueues the order for sync.
func FollowUp(s Status) (Event, bool) {
	if s == StatusPaid {
		return EventEnqueueSync, true
	}
	return "", false
}

// ParseEvent validates a wire/console event name.
func ParseEvent(s string) (Event, bool) {
	ev := Event(s)
	if ev == EventCancel {
		return ev, true
	}
	if _, ok := transitions[ev]; ok {
		return ev, true
	}
	return "", false
}
