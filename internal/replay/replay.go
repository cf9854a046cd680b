// Package replay runs scripted motion through a constrain.Processor on a
// virtual clock, so lock and release behaviour can be checked without a
// device or real timers.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"axisconstrain/internal/config"
	"axisconstrain/internal/constrain"
)

// ErrInvalidScript is returned for scripts that cannot be run.
var ErrInvalidScript = errors.New("replay: invalid script")

// Step is one input event at a point in virtual time.
type Step struct {
	AtMs  int64  `yaml:"at_ms" json:"at_ms"`
	Axis  string `yaml:"axis" json:"axis"`
	Value int32  `yaml:"value" json:"value"`
}

// Script is a processor configuration plus the events to feed it.
type Script struct {
	Config config.ConstrainConfig `yaml:"config" json:"config"`
	Steps  []Step                 `yaml:"steps" json:"steps"`
}

// Result records what happened to one step.
type Result struct {
	AtMs  int64  `json:"at_ms"`
	Axis  string `json:"axis"`
	In    int32  `json:"in"`
	Out   int32  `json:"out"`
	Lock  string `json:"lock"`
	Fired bool   `json:"released_before,omitempty"`
}

// LoadScript reads a script from a .json, .yaml, or .yml file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return ParseScript(data, format)
}

// ParseScript decodes a script. Missing config fields take the daemon
// defaults.
func ParseScript(data []byte, format string) (*Script, error) {
	s := &Script{Config: config.DefaultConfig().Constrain}

	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, s)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, s)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidScript, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks step ordering and axis names.
func (s *Script) Validate() error {
	var last int64
	for i, st := range s.Steps {
		if st.AtMs < last {
			return fmt.Errorf("%w: step %d at %dms is before %dms", ErrInvalidScript, i, st.AtMs, last)
		}
		last = st.AtMs
		if _, err := st.Event(); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrInvalidScript, i, err)
		}
	}
	return nil
}

// Event converts the step into the input event it describes.
func (st Step) Event() (constrain.Event, error) {
	switch strings.ToLower(st.Axis) {
	case "x":
		return constrain.Event{Type: constrain.EvRel, Code: constrain.RelX, Value: st.Value}, nil
	case "y":
		return constrain.Event{Type: constrain.EvRel, Code: constrain.RelY, Value: st.Value}, nil
	case "wheel":
		return constrain.Event{Type: constrain.EvRel, Code: constrain.RelWheel, Value: st.Value}, nil
	case "hwheel":
		return constrain.Event{Type: constrain.EvRel, Code: constrain.RelHWheel, Value: st.Value}, nil
	default:
		return constrain.Event{}, fmt.Errorf("unknown axis %q", st.Axis)
	}
}

// Run feeds every step through a fresh processor. Before each step the
// virtual clock advances to the step time and any release that fell due in
// between fires.
func Run(s *Script, opts ...constrain.Option) ([]Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	clock := NewVirtualScheduler()
	opts = append([]constrain.Option{constrain.WithScheduler(clock)}, opts...)
	p, err := constrain.New(s.Config.ProcessorConfig(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create processor: %w", err)
	}
	defer p.Close()

	results := make([]Result, 0, len(s.Steps))
	for _, st := range s.Steps {
		fired := clock.AdvanceTo(time.Duration(st.AtMs) * time.Millisecond)

		ev, _ := st.Event()
		ev.Time = clock.Epoch().Add(clock.Now())
		if err := p.Handle(&ev); err != nil {
			return results, fmt.Errorf("step at %dms: %w", st.AtMs, err)
		}

		results = append(results, Result{
			AtMs:  st.AtMs,
			Axis:  strings.ToLower(st.Axis),
			In:    st.Value,
			Out:   ev.Value,
			Lock:  p.Snapshot().Lock.String(),
			Fired: fired > 0,
		})
	}
	return results, nil
}
