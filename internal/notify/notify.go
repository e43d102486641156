// Package notify defines how alerts and reports reach the admin.
package notify

import "context"

// Action is an optional button attached to a notification.
type Action struct {
	Label  string
	Unique string
	Data   string
}

// Notification is a message for the admin chat. Text is HTML.
type Notification struct {
	ID     string
	Text   string
	Action *Action
}

// Notifier delivers notifications. Delivery failures are returned to the
// caller and never retried here.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
