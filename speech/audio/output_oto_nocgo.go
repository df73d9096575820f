//go:build nocgo
// +build nocgo

package audio

import "context"

// OtoOutput stub for builds without CGO.
type OtoOutput struct{}

// NewOtoOutput always fails without CGO.
func NewOtoOutput(OutputConfig) (*OtoOutput, error) {
	return nil, ErrNoAudio
}

func (o *OtoOutput) Play(context.Context, []byte) error { return ErrNoAudio }
func (o *OtoOutput) Stop()                              {}
func (o *OtoOutput) SampleRate() int                    { return 0 }
func (o *OtoOutput) SetVolume(float64) error            { return ErrNoAudio }
func (o *OtoOutput) Close() error                       { return nil }
