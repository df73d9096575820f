package engines

import (
	"fmt"

	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/engines/mock"
	"github.com/dgnsrekt/speakstream/speech/engines/realtime"
	"github.com/dgnsrekt/speakstream/speech/engines/remote"
)

// New creates the engine named by cfg.Engine. The HTTP engine falls back
// to the mock engine when the endpoint keeps failing.
func New(cfg speech.Config) (speech.Synthesizer, error) {
	switch cfg.Engine {
	case "mock":
		return mock.New(cfg.Mock, cfg.SampleRate), nil
	case "http":
		primary, err := remote.New(cfg.HTTP)
		if err != nil {
			return nil, fmt.Errorf("http engine: %w", err)
		}
		return NewFallbackEngine(primary, mock.New(cfg.Mock, cfg.SampleRate), DefaultMaxFailures, cfg.SampleRate), nil
	case "realtime":
		e, err := realtime.New(cfg.Realtime)
		if err != nil {
			return nil, fmt.Errorf("realtime engine: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", speech.ErrUnknownEngine, cfg.Engine)
	}
}
