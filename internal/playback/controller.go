// Package playback decodes synthesized MP3 audio and plays it, one clip at a
// time.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/speak-service/internal/core"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
)

// ErrDecode is returned when audio bytes cannot be decoded for playback.
var ErrDecode = errors.New("failed to decode audio")

// DecodeFunc turns encoded audio into a stream.
type DecodeFunc func(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// Sink plays decoded streams. Play starts playback without blocking and calls
// done once the stream is exhausted. The returned stop function halts
// playback early; done is not called after stop.
type Sink interface {
	Play(streamer beep.Streamer, format beep.Format, done func()) (stop func(), err error)
}

// Controller serializes playback: a clip waits for the previous one to finish
// or be stopped before it starts.
type Controller struct {
	sink      Sink
	decode    DecodeFunc
	indicator core.Indicator
	log       *logger.Logger

	slot chan struct{}

	mu      sync.Mutex
	current *Handle
}

// Option configures a Controller.
type Option func(*Controller)

// WithDecoder replaces the MP3 decoder.
func WithDecoder(decode DecodeFunc) Option {
	return func(c *Controller) {
		c.decode = decode
	}
}

// NewController creates a Controller playing on sink. indicator may be nil.
func NewController(sink Sink, indicator core.Indicator, log *logger.Logger, opts ...Option) *Controller {
	controller := &Controller{
		sink:      sink,
		decode:    mp3.Decode,
		indicator: indicator,
		log:       log,
		slot:      make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(controller)
	}

	return controller
}

// Play decodes audio and starts it once any earlier clip has ended. ctx bounds
// the wait for the previous clip, not the playback itself; use the returned
// Handle to stop it.
func (c *Controller) Play(ctx context.Context, audio []byte) (*Handle, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: no audio data", ErrDecode)
	}

	streamer, format, err := c.decode(io.NopCloser(bytes.NewReader(audio)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		_ = streamer.Close()

		return nil, fmt.Errorf("waiting for previous playback: %w", ctx.Err())
	}

	handle := newHandle()

	stop, err := c.sink.Play(streamer, format, handle.finish)
	if err != nil {
		_ = streamer.Close()
		<-c.slot

		return nil, fmt.Errorf("failed to start playback: %w", err)
	}

	handle.setStop(stop)

	c.mu.Lock()
	c.current = handle
	c.mu.Unlock()

	c.setState(core.StateSpeaking)
	c.log.Info("Playback started: %d bytes at %d Hz", len(audio), format.SampleRate)

	go c.release(handle, streamer)

	return handle, nil
}

// Stop halts the clip that is currently playing, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if current != nil {
		current.Stop()
	}
}

func (c *Controller) release(handle *Handle, streamer beep.StreamSeekCloser) {
	<-handle.Done()

	closeErr := streamer.Close()
	if closeErr != nil {
		c.log.Warn("Failed to close audio stream: %v", closeErr)
	}

	c.mu.Lock()
	if c.current == handle {
		c.current = nil
	}
	c.mu.Unlock()

	if handle.Stopped() {
		c.log.Info("Playback stopped")
	} else {
		c.log.Info("Playback finished")
	}

	c.setState(core.StateIdle)
	<-c.slot
}

func (c *Controller) setState(state core.IndicatorState) {
	if c.indicator != nil {
		c.indicator.SetState(state)
	}
}
