package pump

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/factwatch/factwatch/internal/metrics"
	"github.com/factwatch/factwatch/internal/watch/event"
	"go.uber.org/zap"
)

var (
	ErrInvalidEncoding     = errors.New("line is not valid utf-8")
	ErrUnknownDecodePolicy = errors.New("unknown decode policy")
)

// DecodePolicy controls how lines that are not valid UTF-8 are handled.
type DecodePolicy string

const (
	// DecodeSkip echoes the raw line and skips classification
	DecodeSkip DecodePolicy = "skip"

	// DecodeStrict stops the pump with a ReadError
	DecodeStrict DecodePolicy = "strict"
)

type Config struct {
	// Decode is the policy for lines that are not valid UTF-8
	Decode DecodePolicy `conf:"decode"`
}

var DefaultConfig = Config{
	Decode: DecodeSkip,
}

// ReadError reports a failure reading the output stream.
type ReadError struct {
	// Line is the number of the line that could not be read
	Line int

	// Err is the underlying error
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read line %d: %v", e.Line, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type Classifier interface {
	Classify(line string) (event.Event, bool)
}

type Dispatcher interface {
	Dispatch(event.Event)
}

type Params struct {
	// Config is the pump config
	Config Config

	// Echo receives every line read, usually os.Stdout
	Echo io.Writer

	// Classifier maps lines to events
	Classifier Classifier

	// Dispatcher receives the events found
	Dispatcher Dispatcher

	// Metrics records lines and events, may be nil
	Metrics *metrics.Metrics

	// Log is the logger to use for the pump
	Log *zap.Logger
}

// Pump reads lines from a stream, echoes them and dispatches the events
// they describe.
type Pump struct {
	config     Config
	echo       io.Writer
	classifier Classifier
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// New creates a pump. An empty decode policy defaults to DecodeSkip,
// any other value than skip or strict is an ErrUnknownDecodePolicy.
func New(params Params) (*Pump, error) {
	switch params.Config.Decode {
	case "":
		params.Config.Decode = DefaultConfig.Decode
	case DecodeSkip, DecodeStrict:
	default:
		return nil, fmt.Errorf("%w %q: expected %q or %q",
			ErrUnknownDecodePolicy, params.Config.Decode, DecodeSkip, DecodeStrict)
	}

	if params.Echo == nil {
		params.Echo = io.Discard
	}

	return &Pump{
		config:     params.Config,
		echo:       params.Echo,
		classifier: params.Classifier,
		dispatcher: params.Dispatcher,
		metrics:    params.Metrics,
		log:        params.Log.Named("pump"),
	}, nil
}

// Run reads r until EOF. It returns nil on EOF and a *ReadError if
// reading fails. Lines are echoed before their events are dispatched.
func (p *Pump) Run(r io.Reader) error {
	reader := bufio.NewReader(r)

	for n := 1; ; n++ {
		line, err := reader.ReadString('\n')

		// a final line without a trailing newline is still a line
		if len(line) > 0 {
			if perr := p.process(n, line); perr != nil {
				p.log.Error("pump stopped", zap.Error(perr))
				return perr
			}
		}

		if errors.Is(err, io.EOF) {
			p.log.Debug("end of output", zap.Int("lines", n-1))
			return nil
		}

		if err != nil {
			rerr := &ReadError{Line: n, Err: err}
			p.log.Error("pump stopped", zap.Error(rerr))
			return rerr
		}
	}
}

func (p *Pump) process(n int, raw string) error {
	line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")

	p.metrics.ObserveLine()

	if _, err := io.WriteString(p.echo, line+"\n"); err != nil {
		p.log.Warn("failed to echo line", zap.Int("line", n), zap.Error(err))
	}

	if !utf8.ValidString(line) {
		p.metrics.ObserveDecodeError()

		if p.config.Decode == DecodeStrict {
			return &ReadError{Line: n, Err: ErrInvalidEncoding}
		}

		p.log.Warn("skipping line with invalid encoding", zap.Int("line", n))
		return nil
	}

	evt, ok := p.classifier.Classify(line)
	if !ok {
		return nil
	}

	p.log.Debug("detected event", zap.Stringer("event", evt))
	p.metrics.ObserveEvent(string(evt.Kind))

	p.dispatcher.Dispatch(evt)

	return nil
}

// Task is a pump running in the background.
type Task struct {
	done chan struct{}
	err  error
}

// Start runs the pump on rc in a new goroutine. rc is closed once the
// pump stops.
func (p *Pump) Start(rc io.ReadCloser) *Task {
	task := &Task{done: make(chan struct{})}

	go func() {
		defer close(task.done)

		task.err = p.Run(rc)

		if err := rc.Close(); err != nil {
			p.log.Debug("failed to close output stream", zap.Error(err))
		}
	}()

	return task
}

// Done is closed when the pump stopped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the error the pump stopped with. It is only valid after
// Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the pump stopped or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
