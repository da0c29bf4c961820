package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediline/telecare-api/pkg/rtctoken"
)

func TestTokenServiceIssuesSignedCredential(t *testing.T) {
	builder, err := rtctoken.New("telecare", "signing-secret", time.Hour)
	require.NoError(t, err)

	svc := NewTokenService(builder, testLogger())
	response := svc.Issue("chan-1", "alice@example.com", "publisher")

	require.NotEmpty(t, response.Token)
	require.False(t, response.Insecure)
	require.Equal(t, 3600, response.ExpiresIn)

	channel, uid, role, err := builder.Verify(response.Token)
	require.NoError(t, err)
	require.Equal(t, "chan-1", channel)
	require.Equal(t, "alice@example.com", uid)
	require.Equal(t, "publisher", role)
}

func TestTokenServiceDegradesWithoutSecret(t *testing.T) {
	svc := NewTokenService(nil, testLogger())

	response := svc.Issue("chan-1", "alice@example.com", "")
	require.Empty(t, response.Token)
	require.True(t, response.Insecure)
	require.Equal(t, "publisher", response.Role)
}

func TestTokenServiceDegradesOnBuildFailure(t *testing.T) {
	builder, err := rtctoken.New("telecare", "signing-secret", time.Hour)
	require.NoError(t, err)

	svc := NewTokenService(builder, testLogger())
	response := svc.Issue("chan-1", "alice@example.com", "host")

	require.Empty(t, response.Token)
	require.True(t, response.Insecure)
}
