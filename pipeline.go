package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/speakstream/internal/cache"
	"github.com/dgnsrekt/speakstream/internal/chatlog"
	"github.com/dgnsrekt/speakstream/speech"
	"github.com/dgnsrekt/speakstream/speech/audio"
	"github.com/dgnsrekt/speakstream/speech/avatar"
	"github.com/dgnsrekt/speakstream/speech/engines"
	"github.com/dgnsrekt/speakstream/speech/queue"
	"github.com/dgnsrekt/speakstream/speech/segment"
	"github.com/dgnsrekt/speakstream/speech/session"
)

// pipeline holds everything a speak run needs.
type pipeline struct {
	controller *speech.Controller
	transcript *chatlog.Transcript
	queue      *queue.Queue
	output     audio.Output
	cache      *cache.Manager
}

type pipelineOptions struct {
	noCache bool
	mute    bool
	rigOut  io.Writer
	plain   bool
}

func newPipeline(cfg speech.Config, opts pipelineOptions) (*pipeline, error) {
	p := &pipeline{}

	synth, err := engines.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create engine: %w", err)
	}
	if cfg.Cache.Enabled && !opts.noCache {
		mgr, err := cache.NewManager(cache.ConfigFrom(cfg.Cache))
		if err != nil {
			log.Warn("Synthesis cache disabled", "err", err)
		} else {
			p.cache = mgr
			synth = cache.Wrap(synth, mgr)
		}
	}

	p.output = newOutput(cfg, opts.mute)

	rig := avatar.NewConsoleRig(cfg.Avatar, opts.rigOut, opts.plain)
	adapter, err := avatar.New(avatar.Kind(cfg.Avatar), p.output, rig, avatar.Options{
		FallbackTimeout: cfg.PNGTuber.FallbackTimeout,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("unable to create avatar: %w", err)
	}

	p.queue = queue.New(adapter, queue.WithCheckDelay(cfg.QueueCheckDelay))
	p.transcript = chatlog.New()
	p.controller = speech.NewController(synth, p.queue, session.New(),
		func() speech.TextSegmenter {
			return segment.New(segment.WithCutoffs(cfg.ShortMax, cfg.LongMin))
		},
		speech.WithChatLog(p.transcript),
		speech.WithLookahead(cfg.Lookahead),
		speech.WithBufferThreshold(cfg.BufferThreshold),
	)

	log.Debug("Pipeline ready",
		"engine", synth.Name(),
		"avatar", cfg.Avatar,
		"cache", p.cache != nil,
		"muted", opts.mute)
	return p, nil
}

// newOutput opens the sound device, or a silent output paced like real
// playback when muted or no device is available.
func newOutput(cfg speech.Config, mute bool) audio.Output {
	if !mute {
		out, err := audio.NewOtoOutput(audio.OutputConfig{SampleRate: cfg.SampleRate, Volume: cfg.Volume})
		if err == nil {
			return out
		}
		log.Warn("Audio output unavailable, playing silently", "err", err)
	}
	return audio.NewMockOutput(cfg.SampleRate, 1.0, audio.MockCallbacks{})
}

// Close releases the pipeline in reverse order of construction.
func (p *pipeline) Close() error {
	var errs []error
	if p.controller != nil {
		p.controller.Close()
	}
	if p.queue != nil {
		errs = append(errs, p.queue.Close())
	}
	if p.output != nil {
		errs = append(errs, p.output.Close())
	}
	if p.cache != nil {
		stats := p.cache.Stats()
		log.Debug("Cache stats", "hit_rate", stats.HitRate())
		errs = append(errs, p.cache.Close())
	}
	return errors.Join(errs...)
}
