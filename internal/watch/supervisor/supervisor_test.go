//go:build !windows

package supervisor_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/factwatch/factwatch/internal/watch/dispatcher"
	"github.com/factwatch/factwatch/internal/watch/event"
	"github.com/factwatch/factwatch/internal/watch/interrupt"
	"github.com/factwatch/factwatch/internal/watch/notify"
	"github.com/factwatch/factwatch/internal/watch/process"
	"github.com/factwatch/factwatch/internal/watch/pump"
	"github.com/factwatch/factwatch/internal/watch/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// syncBuffer is a bytes.Buffer safe for use by the pump goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	supervisor *supervisor.Supervisor
	dispatcher *dispatcher.Dispatcher
	deliverer  *notify.MockDeliverer
	token      *interrupt.Token
	echo       *syncBuffer
	logs       *observer.ObservedLogs
}

func createSupervisor(t *testing.T, config supervisor.Config) *fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	deliverer := notify.NewMockDeliverer(t)

	notifyConfig := notify.DefaultConfig
	notifyConfig.Endpoint = "https://example.com/hook"

	notifier := notify.NewNotifier(notify.Params{
		Config:    notifyConfig,
		Deliverer: deliverer,
		Log:       log,
	})

	d, err := dispatcher.New(dispatcher.Params{
		Config:  dispatcher.DefaultConfig,
		Handler: notifier.Notify,
		Log:     log,
	})
	require.NoError(t, err)

	classifier, err := event.NewClassifier(event.DefaultPatterns)
	require.NoError(t, err)

	echo := &syncBuffer{}

	p, err := pump.New(pump.Params{
		Config:     pump.DefaultConfig,
		Echo:       echo,
		Classifier: classifier,
		Dispatcher: d,
		Log:        log,
	})
	require.NoError(t, err)

	token := interrupt.NewToken()

	s := supervisor.New(supervisor.Params{
		Config: config,
		Pump:   p,
		Token:  token,
		Log:    log,
	})

	return &fixture{
		supervisor: s,
		dispatcher: d,
		deliverer:  deliverer,
		token:      token,
		echo:       echo,
		logs:       logs,
	}
}

func shell(script string) supervisor.Config {
	return supervisor.Config{
		Process: process.StartConfig{
			Cmd:  "sh",
			Args: []string{"-c", script},
		},
	}
}

// settle waits for the pump and every dispatched notification.
func (f *fixture) settle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	task := f.supervisor.PumpTask()
	require.NotNil(t, task)
	require.NoError(t, task.Wait(ctx))

	f.dispatcher.Wait()
}

func messageContaining(parts ...string) interface{} {
	return mock.MatchedBy(func(message string) bool {
		for _, part := range parts {
			if !strings.Contains(message, part) {
				return false
			}
		}
		return true
	})
}

func TestSupervisor_Supervise_NotifiesJoin(t *testing.T) {
	f := createSupervisor(t, shell(`echo "[JOIN] Alice joined the game"`))

	f.deliverer.EXPECT().
		Deliver(mock.Anything, "https://example.com/hook", "FactorioWatch", messageContaining("Alice", "joined")).
		Return(nil).
		Once()

	evt, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, *evt.Code)

	f.settle(t)

	assert.Equal(t, "[JOIN] Alice joined the game\n", f.echo.String())
}

func TestSupervisor_Supervise_NotifiesLeave(t *testing.T) {
	f := createSupervisor(t, shell(`echo "[LEAVE] Bob left the game"`))

	f.deliverer.EXPECT().
		Deliver(mock.Anything, mock.Anything, "FactorioWatch", messageContaining("Bob", "left")).
		Return(nil).
		Once()

	_, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)

	f.settle(t)
}

func TestSupervisor_Supervise_UnrelatedLineIsOnlyEchoed(t *testing.T) {
	f := createSupervisor(t, shell(`echo "Server tick 1000"`))

	_, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)

	f.settle(t)

	assert.Equal(t, "Server tick 1000\n", f.echo.String())
	f.deliverer.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSupervisor_Supervise_DeliveryFailureIsIsolated(t *testing.T) {
	f := createSupervisor(t, shell(`
echo "[JOIN] Alice joined the game"
sleep 0.1
echo "Server tick 1"
echo "[LEAVE] Alice left the game"
`))

	f.deliverer.EXPECT().
		Deliver(mock.Anything, mock.Anything, mock.Anything, messageContaining("joined")).
		Return(&notify.DeliveryError{StatusCode: 502, Err: assert.AnError}).
		Once()
	f.deliverer.EXPECT().
		Deliver(mock.Anything, mock.Anything, mock.Anything, messageContaining("left")).
		Return(nil).
		Once()

	_, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)

	f.settle(t)

	assert.Equal(t,
		"[JOIN] Alice joined the game\nServer tick 1\n[LEAVE] Alice left the game\n",
		f.echo.String(),
	)
	assert.Len(t, f.logs.FilterMessage("notification failed").All(), 1)
}

func TestSupervisor_Supervise_InterruptWaitsForNaturalExit(t *testing.T) {
	f := createSupervisor(t, shell(`sleep 0.5; echo "stopped"`))

	go func() {
		time.Sleep(100 * time.Millisecond)
		f.token.Fire()
		// a repeated interrupt is a no-op
		f.token.Fire()
	}()

	start := time.Now()

	evt, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
	require.NotNil(t, evt.Code)
	assert.Equal(t, 0, *evt.Code)

	messages := []string{}
	supervisorLogs := f.logs.Filter(func(entry observer.LoggedEntry) bool {
		return entry.LoggerName == "supervisor"
	})
	for _, entry := range supervisorLogs.All() {
		messages = append(messages, entry.Message)
	}

	interrupted := indexOf(messages, "received interrupt, waiting for server to stop")
	exited := indexOf(messages, "server exited")

	require.NotEqual(t, -1, interrupted)
	require.NotEqual(t, -1, exited)
	assert.Less(t, interrupted, exited)

	f.settle(t)
}

func TestSupervisor_Supervise_ReportsNaturalExit(t *testing.T) {
	f := createSupervisor(t, shell(`exit 2`))

	evt, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)

	require.NotNil(t, evt.Code)
	assert.Equal(t, 2, *evt.Code)
	assert.False(t, f.token.Fired())

	entries := f.logs.FilterMessage("server exited").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "exit status 2", entries[0].ContextMap()["status"])
	}
	assert.Empty(t, f.logs.FilterMessage("received interrupt, waiting for server to stop").All())
}

func TestSupervisor_Supervise_SpawnError(t *testing.T) {
	f := createSupervisor(t, supervisor.Config{
		Process: process.StartConfig{Cmd: "/nonexistent/factorio"},
	})

	_, err := f.supervisor.Supervise(context.Background())

	var spawnErr *supervisor.SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "/nonexistent/factorio", spawnErr.Cmd)
	assert.Nil(t, f.supervisor.PumpTask())

	entries := f.logs.FilterMessage("failed to start server process").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	}
}

func TestSupervisor_Supervise_KillsAfterGracePeriod(t *testing.T) {
	config := shell(`exec sleep 10`)
	config.KillAfter = 100 * time.Millisecond

	f := createSupervisor(t, config)
	f.token.Fire()

	evt, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)

	require.NotNil(t, evt.Signal)
	assert.Equal(t, syscall.SIGKILL, syscall.Signal(*evt.Signal))
	assert.Len(t, f.logs.FilterMessage("server did not stop in time, killing it").All(), 1)
}

func TestSupervisor_Supervise_ForwardsInterrupt(t *testing.T) {
	config := shell(`exec sleep 10`)
	config.ForwardSignal = true
	config.KillAfter = 3 * time.Second

	f := createSupervisor(t, config)
	f.token.Fire()

	evt, err := f.supervisor.Supervise(context.Background())
	require.NoError(t, err)

	// terminated by the forwarded interrupt, or killed if it was ignored
	assert.NotNil(t, evt.Signal)
	assert.NotEmpty(t, f.logs.FilterMessage("sending signal").All())
}

func TestSupervisor_Supervise_WaitErrorOnCancelledContext(t *testing.T) {
	f := createSupervisor(t, shell(`exec sleep 1`))
	f.token.Fire()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.supervisor.Supervise(ctx)

	var waitErr *supervisor.WaitError
	require.True(t, errors.As(err, &waitErr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupervisor_Run_DrainsOutput(t *testing.T) {
	config := shell(`echo "[JOIN] Alice joined the game"; echo "done"`)
	config.DrainTimeout = 2 * time.Second

	f := createSupervisor(t, config)

	f.deliverer.EXPECT().
		Deliver(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Once()

	require.NoError(t, f.supervisor.Run(context.Background()))

	select {
	case <-f.supervisor.PumpTask().Done():
	default:
		t.Fatal("pump still running after Run returned")
	}

	f.dispatcher.Wait()
	assert.Equal(t, "[JOIN] Alice joined the game\ndone\n", f.echo.String())
}

func TestSupervisor_Run_ReturnsSpawnError(t *testing.T) {
	f := createSupervisor(t, supervisor.Config{
		Process: process.StartConfig{Cmd: "/nonexistent/factorio"},
	})

	err := f.supervisor.Run(context.Background())

	var spawnErr *supervisor.SpawnError
	assert.True(t, errors.As(err, &spawnErr))
}

func indexOf(items []string, item string) int {
	for i, v := range items {
		if v == item {
			return i
		}
	}
	return -1
}
