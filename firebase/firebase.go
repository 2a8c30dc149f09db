package firebase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"kudos-backend/services"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// NewApp initializes Firebase. credentials is either inline service-account
// JSON or a path to the credentials file; empty uses default credentials.
func NewApp(ctx context.Context, credentials string, log logrus.FieldLogger) (*firebase.App, error) {
	var opts []option.ClientOption

	if credentials != "" {
		if strings.HasPrefix(strings.TrimSpace(credentials), "{") {
			log.Info("Using Firebase credentials from environment variable")
			opts = append(opts, option.WithCredentialsJSON([]byte(credentials)))
		} else {
			// It's a file path
			log.WithField("path", credentials).Info("Using Firebase credentials from file")
			opts = append(opts, option.WithCredentialsFile(credentials))
		}
	} else {
		log.Warn("GOOGLE_APPLICATION_CREDENTIALS not set, using default credentials")
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init failed: %w", err)
	}
	return app, nil
}

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier delivers notifications through Firebase Cloud Messaging. Each
// user's devices subscribe to the topic returned by Topic.
type PushNotifier struct {
	client sender
	log    logrus.FieldLogger
}

func NewPushNotifier(ctx context.Context, app *firebase.App, log logrus.FieldLogger) (*PushNotifier, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &PushNotifier{client: client, log: log}, nil
}

func (p *PushNotifier) Notify(ctx context.Context, n services.Notification) error {
	id, err := p.client.Send(ctx, buildMessage(n))
	if err != nil {
		return fmt.Errorf("fcm send to %s: %w", Topic(n.UserID), err)
	}
	p.log.WithFields(logrus.Fields{"user_id": n.UserID, "message_id": id}).Debug("push notification sent")
	return nil
}

var topicUnsafe = regexp.MustCompile(`[^a-zA-Z0-9\-_.~%]`)

// Topic maps a user id onto a valid FCM topic name.
func Topic(userID string) string {
	return "user_" + topicUnsafe.ReplaceAllString(userID, "_")
}

func buildMessage(n services.Notification) *messaging.Message {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["user_id"] = n.UserID

	return &messaging.Message{
		Topic: Topic(n.UserID),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: data,
	}
}
