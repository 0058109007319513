package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"sisu-notifier/internal/config"
	"sisu-notifier/internal/errors"
)

func TestKeyringRoundTrip(t *testing.T) {
	keyring.MockInit()

	kr := NewKeyring()
	_, err := kr.Get(config.SecretSMTPPassword)
	assert.True(t, errors.Is(err, errors.ErrSecretNotFound))

	require.NoError(t, Set(KindSMTP, "app-password"))
	require.NoError(t, Set(KindSISU, "Bearer abc"))

	v, err := kr.Get(config.SecretSMTPPassword)
	require.NoError(t, err)
	assert.Equal(t, "app-password", v)

	v, err = kr.Get(config.SecretSISUAuthHeader)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", v)

	require.NoError(t, Delete(KindSMTP))
	_, err = kr.Get(config.SecretSMTPPassword)
	assert.True(t, errors.Is(err, errors.ErrSecretNotFound))
	assert.True(t, errors.Is(Delete(KindSMTP), errors.ErrSecretNotFound))
}

func TestSetRejectsBadInput(t *testing.T) {
	keyring.MockInit()

	assert.True(t, errors.Is(Set(Kind("imap"), "x"), errors.ErrConfigInvalid))
	assert.True(t, errors.Is(Set(KindSMTP, "  "), errors.ErrConfigInvalid))
}

func TestKeyringFeedsConfig(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, Set(KindSISU, "Bearer from-keyring"))

	for _, k := range []string{"SISU_AUTH_HEADER", "SMTP_HOST", "SMTP_PASS", "NOTIFICATION_EMAILS", "WINDOW_DAYS", "SMTP_PORT",
		"SISU_AGENT_ID", "SISU_TEAM_ID", "SISU_MARKET_ID", "SISU_BASE_URL", "SMTP_USER", "NOTIFIER_LISTEN_ADDR"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load(t.TempDir(), NewKeyring())
	require.NoError(t, err)
	assert.Equal(t, "Bearer from-keyring", cfg.SISU.AuthHeader)
}
