package interrupt

import (
	"os"
	"os/signal"
	"sync"

	"go.uber.org/zap"
)

// Watch fires token when one of signals is received, DefaultSignals if
// none are given. Signals received after the first are logged and
// otherwise ignored. The returned function stops watching and may be
// called more than once.
func Watch(token *Token, log *zap.Logger, signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = DefaultSignals
	}

	log = log.Named("interrupt")

	ch := make(chan os.Signal, 1)
	quit := make(chan struct{})

	signal.Notify(ch, signals...)

	go func() {
		for {
			select {
			case sig := <-ch:
				if token.Fire() {
					log.Info("received signal", zap.Stringer("signal", sig))
				} else {
					log.Debug("already stopping, ignoring signal", zap.Stringer("signal", sig))
				}
			case <-quit:
				return
			}
		}
	}()

	var once sync.Once

	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(quit)
		})
	}
}
