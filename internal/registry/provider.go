package registry

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"pwa-notify-go/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrPermissionDenied means the user has blocked notifications.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrChannelUnavailable means the push service cannot be reached or
	// cannot issue a channel.
	ErrChannelUnavailable = errors.New("push channel unavailable")
)

// Permission mirrors the platform's notification permission states.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// ChannelProvider hands out push channels from the platform's notification
// service.
type ChannelProvider interface {
	Subscribe(ctx context.Context) (models.PushChannel, error)
	Unsubscribe(ctx context.Context, endpoint string) error
}

// GatewayProvider issues channels under a configured push-gateway base URL.
// Each channel gets a fresh P-256 keypair and auth secret, which is what the
// push service encrypts payloads against.
type GatewayProvider struct {
	Gateway    string
	Permission Permission
}

func (p *GatewayProvider) Subscribe(ctx context.Context) (models.PushChannel, error) {
	if p.Permission == PermissionDenied {
		return models.PushChannel{}, ErrPermissionDenied
	}
	if p.Gateway == "" {
		return models.PushChannel{}, ErrChannelUnavailable
	}

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return models.PushChannel{}, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return models.PushChannel{}, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}

	var ch models.PushChannel
	ch.Endpoint = strings.TrimRight(p.Gateway, "/") + "/push/" + uuid.NewString()
	ch.Keys.P256dh = base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes())
	ch.Keys.Auth = base64.RawURLEncoding.EncodeToString(auth)
	return ch, nil
}

func (p *GatewayProvider) Unsubscribe(ctx context.Context, endpoint string) error {
	// Channels under the gateway expire on their own once the server copy
	// is deactivated; there is nothing to tear down locally.
	return nil
}
