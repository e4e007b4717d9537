package keyring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestSecretLifecycle(t *testing.T) {
	for _, s := range Secrets() {
		t.Run(s.Label, func(t *testing.T) {
			gokeyring.MockInit()

			_, err := s.Get()
			assert.ErrorIs(t, err, ErrNotFound)
			stored, err := s.Stored()
			require.NoError(t, err)
			assert.False(t, stored)

			require.NoError(t, s.Set("value-for-"+s.user))
			got, err := s.Get()
			require.NoError(t, err)
			assert.Equal(t, "value-for-"+s.user, got)
			stored, err = s.Stored()
			require.NoError(t, err)
			assert.True(t, stored)

			require.NoError(t, s.Delete())
			assert.ErrorIs(t, s.Delete(), ErrNotFound)
			_, err = s.Get()
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSetRejectsEmpty(t *testing.T) {
	gokeyring.MockInit()
	assert.ErrorContains(t, SetConnectionString(""), "connection string cannot be empty")
	assert.ErrorContains(t, SetJWTSecret(""), "API token secret cannot be empty")
}

func TestSecretsAreIndependent(t *testing.T) {
	gokeyring.MockInit()

	require.NoError(t, SetJWTSecret("0123456789abcdef0123456789abcdef"))
	_, err := GetConnectionString()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SetConnectionString("postgres://habitual@localhost:5432/habitual"))
	require.NoError(t, DeleteJWTSecret())

	conn, err := GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, "postgres://habitual@localhost:5432/habitual", conn)
}

func TestUnavailableKeyring(t *testing.T) {
	gokeyring.MockInitWithError(errors.New("dbus: no session bus"))
	t.Cleanup(gokeyring.MockInit)

	_, err := GetJWTSecret()
	assert.ErrorIs(t, err, ErrKeyringUnavailable)
	_, err = JWTSecret.Stored()
	assert.ErrorIs(t, err, ErrKeyringUnavailable)
	assert.False(t, IsAvailable())
}

func TestIsAvailableWithMock(t *testing.T) {
	gokeyring.MockInit()
	assert.True(t, IsAvailable())
}
