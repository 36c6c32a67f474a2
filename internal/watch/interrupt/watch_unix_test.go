//go:build !windows

package interrupt_test

import (
	"syscall"
	"testing"
	"time"

	"github.com/factwatch/factwatch/internal/watch/interrupt"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWatch_FiresTokenOnSignal(t *testing.T) {
	token := interrupt.NewToken()

	stop := interrupt.Watch(token, zap.NewNop(), syscall.SIGUSR1)
	defer stop()

	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-token.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("token not fired by signal")
	}

	// a repeated signal must not panic
	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, token.Fired())
}

func TestWatch_StopIsIdempotent(t *testing.T) {
	stop := interrupt.Watch(interrupt.NewToken(), zap.NewNop(), syscall.SIGUSR2)

	assert.NotPanics(t, func() {
		stop()
		stop()
	})
}
