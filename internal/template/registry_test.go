package template

import (
	"errors"
	"testing"

	"github.com/notify-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustValidate_FullTable(t *testing.T) {
	assert.NotPanics(t, func() { NewRegistry().MustValidate() })
}

func TestMustValidate_PanicsOnMissingDefault(t *testing.T) {
	r := &Registry{table: map[domain.NotificationType]map[domain.Channel]map[domain.Role]renderFunc{
		domain.TypeWelcome: {
			domain.ChannelEmail: {
				domain.RoleAdmin: func(map[string]string) Rendered { return Rendered{} },
			},
		},
	}}
	assert.Panics(t, func() { r.MustValidate() })
}

func TestRender_OTPEmail(t *testing.T) {
	r := NewRegistry()

	msg, err := r.Render(domain.TypeOTP, domain.ChannelEmail, domain.RoleClient, map[string]string{
		"otp_code":   "123456",
		"name":       "Alice",
		"expires_in": "10",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, msg.Subject)
	assert.Contains(t, msg.Body, "123456")
	assert.Contains(t, msg.Body, "Alice")
	assert.Contains(t, msg.Body, "10")
}

func TestRender_UnknownRoleFallsBackToDefault(t *testing.T) {
	r := NewRegistry()

	def, err := r.Render(domain.TypeOTP, domain.ChannelSMS, domain.RoleClient, map[string]string{"otp_code": "654321"})
	require.NoError(t, err)
	other, err := r.Render(domain.TypeOTP, domain.ChannelSMS, domain.Role("unknown"), map[string]string{"otp_code": "654321"})
	require.NoError(t, err)

	assert.Equal(t, def, other)
	assert.Contains(t, def.Body, "654321")
}

func TestRender_RoleSpecificCopyDiffers(t *testing.T) {
	r := NewRegistry()

	data := map[string]string{"otp_code": "123456", "name": "Pat", "expires_in": "10"}
	client, err := r.Render(domain.TypeOTP, domain.ChannelEmail, domain.RoleClient, data)
	require.NoError(t, err)
	admin, err := r.Render(domain.TypeOTP, domain.ChannelEmail, domain.RoleAdmin, data)
	require.NoError(t, err)

	assert.NotEqual(t, client, admin)
}

func TestRender_UnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Render(domain.NotificationType("bogus"), domain.ChannelEmail, domain.RoleClient, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestRender_MissingChannelForType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Render(domain.TypePasswordReset, domain.ChannelPush, domain.RoleClient, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedChannel))
}

func TestRender_NilDataSafe(t *testing.T) {
	r := NewRegistry()

	msg, err := r.Render(domain.TypeWelcome, domain.ChannelEmail, domain.RoleClient, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, msg.Body)
}

func TestChannels(t *testing.T) {
	r := NewRegistry()

	channels := r.Channels(domain.TypeOTP)

	assert.Contains(t, channels, domain.ChannelEmail)
	assert.Contains(t, channels, domain.ChannelSMS)
}
