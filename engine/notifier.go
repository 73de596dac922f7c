package engine

// Notifier is a concurrency primitive for informing a worker that there is
// work to do. Notifications are not queued: any number of calls to Notify
// before the worker reads the channel result in a single notification.
// Notifier is safe to pass by value.
type Notifier struct {
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier. Notifiers essentially behave like
// channels. Hence, they are passed by value.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification without blocking.
func (n Notifier) Notify() {
	select {
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns the channel the worker should wait on.
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
