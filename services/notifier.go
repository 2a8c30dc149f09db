package services

import (
	"context"
	"sync"
	"time"

	"kudos-backend/metrics"

	"github.com/sirupsen/logrus"
)

// Notification is a best-effort message for one user.
type Notification struct {
	UserID  string
	Title   string
	Message string
	Data    map[string]string
}

// Notifier delivers a notification. Implementations may be slow or fail;
// the dispatcher isolates callers from both.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationQueue accepts notifications without blocking.
type NotificationQueue interface {
	Enqueue(n Notification) bool
}

// LogNotifier writes notifications to the log. Used when no push backend is configured.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.Log.WithFields(logrus.Fields{
		"user_id": n.UserID,
		"title":   n.Title,
	}).Info(n.Message)
	return nil
}

const notifyTimeout = 10 * time.Second

// Dispatcher is a bounded outbound queue drained by a fixed set of workers.
type Dispatcher struct {
	notifier Notifier
	log      logrus.FieldLogger
	queue    chan Notification
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(notifier Notifier, size, workers int, log logrus.FieldLogger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		notifier: notifier,
		log:      log,
		queue:    make(chan Notification, size),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue never blocks. It reports false when the notification was dropped
// because the queue is full or closed.
func (d *Dispatcher) Enqueue(n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.RecordNotification("dropped")
		d.log.WithField("user_id", n.UserID).Warn("notification dropped: dispatcher closed")
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		metrics.RecordNotification("dropped")
		d.log.WithField("user_id", n.UserID).Warn("notification dropped: queue full")
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordNotification("failed")
			d.log.WithField("user_id", n.UserID).Errorf("notifier panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, n); err != nil {
		metrics.RecordNotification("failed")
		d.log.WithField("user_id", n.UserID).WithError(err).Warn("failed to deliver notification")
		return
	}
	metrics.RecordNotification("sent")
}

// discardQueue is used when a service is built without a queue.
type discardQueue struct{}

func (discardQueue) Enqueue(Notification) bool { return false }
