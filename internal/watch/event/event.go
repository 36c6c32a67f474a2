package event

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrMissingPattern = errors.New("pattern must not be empty")
	ErrMissingCapture = errors.New("pattern must capture the actor name")
)

type Kind string

const (
	// Join describes a player joining the server
	Join Kind = "join"

	// Leave describes a player leaving the server
	Leave Kind = "leave"
)

// Event is a join or leave parsed from a single line of server output.
type Event struct {
	// Kind is the kind of the event
	Kind Kind

	// Actor is the name of the player that joined or left
	Actor string
}

func (e Event) String() string {
	return fmt.Sprintf("%s{%s}", e.Kind, e.Actor)
}

type Patterns struct {
	// Join is the regular expression matching join lines. The actor name
	// is taken from the capture group named "actor", or the first group.
	Join string `conf:"join"`

	// Leave is the regular expression matching leave lines.
	Leave string `conf:"leave"`
}

// DefaultPatterns match the console output of a Factorio headless server.
var DefaultPatterns = Patterns{
	Join:  `\[JOIN\] (.*) joined the game$`,
	Leave: `\[LEAVE\] (.*) left the game$`,
}

type matcher struct {
	re    *regexp.Regexp
	group int
}

func compileMatcher(name, pattern string) (matcher, error) {
	if pattern == "" {
		return matcher{}, fmt.Errorf("%s: %w", name, ErrMissingPattern)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return matcher{}, fmt.Errorf("%s: %w", name, err)
	}

	if re.NumSubexp() < 1 {
		return matcher{}, fmt.Errorf("%s: %w", name, ErrMissingCapture)
	}

	group := 1
	if idx := re.SubexpIndex("actor"); idx > 0 {
		group = idx
	}

	return matcher{re: re, group: group}, nil
}

func (m matcher) match(line string) (string, bool) {
	groups := m.re.FindStringSubmatch(line)
	if groups == nil {
		return "", false
	}

	return groups[m.group], true
}

// Classifier maps lines of server output to events.
type Classifier struct {
	join  matcher
	leave matcher
}

func NewClassifier(patterns Patterns) (*Classifier, error) {
	join, err := compileMatcher("join", patterns.Join)
	if err != nil {
		return nil, err
	}

	leave, err := compileMatcher("leave", patterns.Leave)
	if err != nil {
		return nil, err
	}

	return &Classifier{join: join, leave: leave}, nil
}

// Classify returns the event described by line, if any. The join
// pattern takes precedence over the leave pattern.
func (c *Classifier) Classify(line string) (Event, bool) {
	if actor, ok := c.join.match(line); ok {
		return Event{Kind: Join, Actor: actor}, true
	}

	if actor, ok := c.leave.match(line); ok {
		return Event{Kind: Leave, Actor: actor}, true
	}

	return Event{}, false
}
