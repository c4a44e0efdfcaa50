package ledcontroller

import (
	"fmt"
	"time"

	"github.com/aykevl/usermod"
	"github.com/hashicorp/go-hclog"
)

const (
	sampleRate   = 44100
	sampleBuffer = 128

	// A read normally takes about 3ms (128 samples at 44.1kHz).
	audioTimeout = 10 * time.Millisecond
)

// audio samples the I2S microphone for the sound reactive patterns.
type audio struct {
	input   usermod.AudioInput
	logger  hclog.Logger
	samples [sampleBuffer]int32

	initialized bool
	readFailed  bool
}

// init claims the I2S pins and configures the microphone. On failure the pins
// are released again and the sound patterns see silence.
func (a *audio) init(pins *usermod.PinManager, config I2SPins) error {
	if config.SD < 0 || config.WS < 0 || config.SCK < 0 {
		return fmt.Errorf("ledcontroller: %w: I2S pins not configured", usermod.ErrPeripheralUnavailable)
	}
	requests := []usermod.PinRequest{
		{Pin: config.SD, Output: false},
		{Pin: config.WS, Output: true},
		{Pin: config.SCK, Output: true},
	}
	if config.MCLK >= 0 {
		requests = append(requests, usermod.PinRequest{Pin: config.MCLK, Output: true})
	}
	if err := pins.AllocateMulti(requests, Name); err != nil {
		return fmt.Errorf("ledcontroller: could not allocate I2S pins: %w", err)
	}
	err := a.input.Configure(usermod.AudioConfig{
		SD:         config.SD,
		WS:         config.WS,
		SCK:        config.SCK,
		MCLK:       config.MCLK,
		SampleRate: sampleRate,
		Timeout:    audioTimeout,
	})
	if err != nil {
		for _, req := range requests {
			pins.Deallocate(req.Pin, Name)
		}
		return fmt.Errorf("ledcontroller: could not configure I2S: %w", err)
	}
	a.initialized = true
	return nil
}

// average reads a new buffer and returns the mean absolute sample value. When
// there is no microphone, or the read fails, the previous buffer is used.
func (a *audio) average() float32 {
	if a.initialized {
		// Only log the first of a series of failures.
		_, err := a.input.Read(a.samples[:])
		if err != nil && !a.readFailed {
			a.logger.Error("could not read audio samples", "error", err)
		}
		a.readFailed = err != nil
	}
	return meanAbs(a.samples[:])
}

// meanAbs sums in 64 bits, a float32 sum of 128 large samples loses precision.
func meanAbs(samples []int32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range samples {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return float32(float64(sum) / float64(len(samples)))
}
