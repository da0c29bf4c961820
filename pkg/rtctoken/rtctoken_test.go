package rtctoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuilderRoundTrip(t *testing.T) {
	builder, err := New("telecare", "super-secret", time.Hour)
	require.NoError(t, err)

	credential, err := builder.Build("chan-42", "alice@example.com", RolePublisher)
	require.NoError(t, err)
	require.NotEmpty(t, credential)

	channel, uid, role, err := builder.Verify(credential)
	require.NoError(t, err)
	require.Equal(t, "chan-42", channel)
	require.Equal(t, "alice@example.com", uid)
	require.Equal(t, RolePublisher, role)
}

func TestBuilderRejectsUnknownRole(t *testing.T) {
	builder, err := New("telecare", "super-secret", time.Hour)
	require.NoError(t, err)

	_, err = builder.Build("chan-42", "alice@example.com", "host")
	require.Error(t, err)
}

func TestBuilderRequiresSecret(t *testing.T) {
	_, err := New("telecare", "", time.Hour)
	require.Error(t, err)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer, err := New("telecare", "secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := New("telecare", "secret-b", time.Hour)
	require.NoError(t, err)

	credential, err := issuer.Build("chan-1", "u-1", RoleSubscriber)
	require.NoError(t, err)

	_, _, _, err = verifier.Verify(credential)
	require.Error(t, err)
}
