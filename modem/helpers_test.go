package modem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"i4.energy/across/cellular/modem"
)

// fastConfig shortens every delay so scripted bring-ups finish quickly.
func fastConfig(dialer modem.Dialer) *modem.ConfigBuilder {
	return modem.NewConfigBuilder().
		WithDialer(dialer).
		WithRetryDelay(time.Millisecond).
		WithATTimeout(50*time.Millisecond).
		WithNetworkTimeout(50*time.Millisecond).
		WithRadioSettle(time.Millisecond).
		WithOpenPolls(20, time.Millisecond).
		WithGPS(time.Millisecond, 15, time.Millisecond)
}

// newTestModule builds a Module on tr. configure may adjust the builder.
func newTestModule(t *testing.T, tr *modem.TestTransport, v modem.Variant, configure ...func(*modem.ConfigBuilder)) *modem.Module {
	t.Helper()
	ctrl := gomock.NewController(t)
	dialer := modem.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(tr, nil)

	b := fastConfig(dialer)
	for _, c := range configure {
		c(b)
	}
	cfg, err := b.Build()
	require.NoError(t, err)

	m, err := modem.New(context.Background(), cfg, v)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// quietVariant returns a variant mock whose reset and setup always succeed.
func quietVariant(t *testing.T) (*modem.MockVariant, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	v := modem.NewMockVariant(ctrl)
	v.EXPECT().Name().Return("TEST").AnyTimes()
	v.EXPECT().PostHandshakeSetup(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	return v, ctrl
}

// healthyModem scripts a module that passes every bring-up stage at once.
func healthyModem() *modem.TestTransport {
	return modem.NewTestTransport().
		Reply("AT", "AT\r\nOK\r\n").
		Reply("AT+CPIN?", "+CPIN: READY\r\n\r\nOK\r\n").
		Reply("AT+CREG?", "+CREG: 0,1\r\n\r\nOK\r\n").
		Reply("AT+CGATT?", "+CGATT: 1\r\n\r\nOK\r\n").
		Reply("AT+CFUN=0", "OK\r\n").
		Reply("AT+CFUN=1", "OK\r\n")
}

// readyModule returns a module that completed BringUp.
func readyModule(t *testing.T, v modem.Variant, configure ...func(*modem.ConfigBuilder)) (*modem.Module, *modem.TestTransport) {
	t.Helper()
	tr := healthyModem()
	m := newTestModule(t, tr, v, configure...)
	require.NoError(t, m.BringUp(context.Background()))
	require.Equal(t, modem.StateReady, m.State())
	return m, tr
}
