package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutKeyLogsOnly(t *testing.T) {
	log, hook := test.NewNullLogger()

	sender := New("", "noreply@example.com", 10, log)
	require.IsType(t, &LogSender{}, sender)

	require.NoError(t, sender.SendOTP(context.Background(), "carol@example.com", "123456"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "123456", entry.Data["code"])
	assert.Equal(t, "carol@example.com", entry.Data["to"])
}

func TestNewWithKeyUsesResend(t *testing.T) {
	log, _ := test.NewNullLogger()

	assert.IsType(t, &ResendSender{}, New("re_test", "noreply@example.com", 10, log))
}

func TestOTPTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, otpTemplate.Execute(&buf, otpData{Code: "654321", Minutes: 10}))

	assert.Contains(t, buf.String(), "654321")
	assert.Contains(t, buf.String(), "10 minutes")
}
