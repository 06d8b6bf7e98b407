package main

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// chime plays a short tone whenever new segments come into view.
type chime struct {
	mu     sync.Mutex
	ready  bool
	volume float64
}

func newChime(volume float64) *chime {
	return &chime{volume: volume}
}

func (c *chime) init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return err
	}
	c.ready = true
	return nil
}

// play pitches the tone up with the number of segments loaded at once.
func (c *chime) play(loaded int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready || loaded <= 0 || c.volume <= 0 {
		return
	}
	freq := 440 * math.Pow(2, float64(min(loaded, 12))/12)
	tone, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return
	}
	shaped := &effects.Volume{
		Streamer: beep.Take(sampleRate.N(60*time.Millisecond), tone),
		Base:     2,
		Volume:   math.Log2(c.volume),
	}
	speaker.Play(shaped)
}

func (c *chime) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		speaker.Close()
		c.ready = false
	}
}
