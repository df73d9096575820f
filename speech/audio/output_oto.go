//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/ebitengine/oto/v3"
)

const pollInterval = 10 * time.Millisecond

// OtoOutput plays through the system audio device. Only one may exist per
// process since oto allows a single context.
type OtoOutput struct {
	context    *oto.Context
	sampleRate int
	log        *log.Logger

	mu     sync.Mutex
	player *oto.Player
	data   []byte // referenced until playback ends
	stopCh chan struct{}
	volume float64
	closed bool
}

// NewOtoOutput opens the audio device.
func NewOtoOutput(cfg OutputConfig) (*OtoOutput, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAudio, err)
	}
	<-readyChan

	return &OtoOutput{
		context:    ctx,
		sampleRate: cfg.SampleRate,
		volume:     cfg.Volume,
		log:        log.WithPrefix("oto"),
	}, nil
}

// Play starts pcm and waits for it to finish.
func (o *OtoOutput) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOutputClosed
	}
	o.stopLocked()

	data := bytes.Clone(pcm)
	player := o.context.NewPlayer(bytes.NewReader(data))
	player.SetVolume(o.volume)
	stop := make(chan struct{})
	o.player, o.data, o.stopCh = player, data, stop
	player.Play()
	o.mu.Unlock()

	o.log.Debug("Playing", "size", humanize.Bytes(uint64(len(data))), "duration", Duration(len(data), o.sampleRate))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.release(player)
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			if !player.IsPlaying() {
				err := player.Err()
				o.release(player)
				return err
			}
		}
	}
}

// Stop interrupts the current playback.
func (o *OtoOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *OtoOutput) stopLocked() {
	if o.player == nil {
		return
	}
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		o.log.Debug("Closing player", "err", err)
	}
	close(o.stopCh)
	o.player, o.data, o.stopCh = nil, nil, nil
}

func (o *OtoOutput) release(p *oto.Player) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == p {
		o.stopLocked()
	}
}

// SampleRate returns the device sample rate.
func (o *OtoOutput) SampleRate() int {
	return o.sampleRate
}

// SetVolume sets the volume for current and future playback.
func (o *OtoOutput) SetVolume(v float64) error {
	if err := validateVolume(v); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = v
	if o.player != nil {
		o.player.SetVolume(v)
	}
	return nil
}

// Close stops playback. The oto context itself lives until process exit.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	o.closed = true
	return nil
}
