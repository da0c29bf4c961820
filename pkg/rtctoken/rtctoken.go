// Package rtctoken issues signed join credentials for the external video
// transport. The credential binds a channel id, participant uid, and role
// for a bounded lifetime; the media service validates it out of band.
package rtctoken

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles accepted by the media transport.
const (
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"
)

// Builder signs join credentials with a shared HMAC secret.
type Builder struct {
	secret []byte
	appID  string
	ttl    time.Duration
}

// New constructs a credential builder. ttl defaults to one hour.
func New(appID, secret string, ttl time.Duration) (*Builder, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("rtc signing secret must not be empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Builder{secret: []byte(secret), appID: appID, ttl: ttl}, nil
}

// TTL returns the configured credential lifetime.
func (b *Builder) TTL() time.Duration {
	return b.ttl
}

// Build returns a signed join credential for the channel/uid/role triple.
func (b *Builder) Build(channelID, uid, role string) (string, error) {
	if strings.TrimSpace(channelID) == "" {
		return "", fmt.Errorf("channel id is required")
	}
	if role != RolePublisher && role != RoleSubscriber {
		return "", fmt.Errorf("unknown rtc role %q", role)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":     b.appID,
		"channel": channelID,
		"uid":     uid,
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(b.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(b.secret)
}

// Verify parses a credential and returns its channel, uid, and role.
func (b *Builder) Verify(credential string) (channelID, uid, role string, err error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return b.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", "", fmt.Errorf("invalid rtc credential")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", "", fmt.Errorf("invalid rtc credential claims")
	}

	channelID, _ = claims["channel"].(string)
	uid, _ = claims["uid"].(string)
	role, _ = claims["role"].(string)
	return channelID, uid, role, nil
}
