package services

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// ErrPushDisabled is returned when no FCM credentials were configured.
var ErrPushDisabled = errors.New("push notifications disabled")

// multicaster is the slice of *messaging.Client the pusher uses.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMPusher sends notifications to mobile devices through Firebase Cloud
// Messaging. The zero value has no client and reports ErrPushDisabled.
type FCMPusher struct {
	client multicaster
	log    zerolog.Logger
}

// PushResult counts per-token outcomes. Unregistered lists tokens FCM says
// will never work again.
type PushResult struct {
	Success      int
	Failure      int
	Unregistered []string
}

func NewFCMPusher(ctx context.Context, credentialsPath string, log zerolog.Logger) (*FCMPusher, error) {
	if credentialsPath == "" {
		log.Warn().Msg("FIREBASE_CREDENTIALS_PATH not set, push fallback disabled")
		return &FCMPusher{log: log}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	log.Info().Str("credentials", credentialsPath).Msg("firebase messaging initialized")
	return &FCMPusher{client: client, log: log}, nil
}

func (p *FCMPusher) Enabled() bool {
	return p != nil && p.client != nil
}

func (p *FCMPusher) Multicast(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error) {
	if !p.Enabled() {
		return PushResult{}, ErrPushDisabled
	}
	if len(tokens) == 0 {
		return PushResult{}, nil
	}

	resp, err := p.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Tokens:       tokens,
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("fcm multicast: %w", err)
	}

	result := PushResult{Success: resp.SuccessCount, Failure: resp.FailureCount}
	for i, r := range resp.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		p.log.Debug().Err(r.Error).Str("token", shortToken(tokens[i])).Msg("fcm token failed")
		if messaging.IsUnregistered(r.Error) {
			result.Unregistered = append(result.Unregistered, tokens[i])
		}
	}
	p.log.Info().
		Int("tokens", len(tokens)).
		Int("success", result.Success).
		Int("failure", result.Failure).
		Msg("fcm multicast sent")
	return result, nil
}

func shortToken(t string) string {
	return t[:min(10, len(t))]
}
