package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/selection"
)

// DefaultIdleTick bounds how long the processing loop waits for a new frame
// before ticking anyway.
const DefaultIdleTick = 100 * time.Millisecond

// Config holds the processing loop settings.
type Config struct {
	Gaze     gaze.Config
	Labels   [][]string
	Window   int           // Debounce window in observations
	Cooldown time.Duration // Minimum interval between confirmations
	IdleTick time.Duration
	Debug    bool // Initial debug overlay state
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Gaze:     gaze.DefaultConfig(),
		Labels:   selection.DefaultLabels,
		Window:   selection.DefaultWindow,
		Cooldown: selection.DefaultCooldown,
		IdleTick: DefaultIdleTick,
	}
}

// ConfigError lists every problem found in a Config.
type ConfigError struct {
	Problems []error
}

func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "pipeline: invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ConfigError) Unwrap() []error {
	return e.Problems
}

// Validate returns a *ConfigError describing every invalid field, or nil.
func (c Config) Validate() error {
	var problems []error
	add := func(err error) {
		if err != nil {
			problems = append(problems, err)
		}
	}
	add(c.Gaze.Estimator.Validate())
	add(c.Gaze.Smoother.Validate())
	if _, err := selection.NewMapper(c.Labels); err != nil {
		add(err)
	}
	if c.Window <= 0 {
		add(fmt.Errorf("debounce window must be positive, got %d", c.Window))
	}
	if c.Cooldown <= 0 {
		add(fmt.Errorf("cooldown must be positive, got %s", c.Cooldown))
	}
	if c.IdleTick <= 0 {
		add(errors.New("idle tick must be positive"))
	}
	if len(problems) == 0 {
		return nil
	}
	return &ConfigError{Problems: problems}
}
