package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// DefaultResampleQuality is the beep resampling quality used when none is set.
const DefaultResampleQuality = 4

// SpeakerSink plays streams on the default audio device. The device is opened
// once, at the sample rate of the first clip; later clips with another rate
// are resampled.
type SpeakerSink struct {
	buffer  time.Duration
	quality int

	once       sync.Once
	initErr    error
	sampleRate beep.SampleRate
}

// NewSpeakerSink creates a sink with the given device buffer and resample
// quality.
func NewSpeakerSink(buffer time.Duration, quality int) *SpeakerSink {
	if buffer <= 0 {
		buffer = time.Second / 10
	}

	if quality <= 0 {
		quality = DefaultResampleQuality
	}

	return &SpeakerSink{buffer: buffer, quality: quality}
}

// Play implements Sink.
func (s *SpeakerSink) Play(streamer beep.Streamer, format beep.Format, done func()) (func(), error) {
	s.once.Do(func() {
		s.sampleRate = format.SampleRate
		s.initErr = speaker.Init(s.sampleRate, s.sampleRate.N(s.buffer))
	})

	if s.initErr != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", s.initErr)
	}

	source := streamer
	if format.SampleRate != s.sampleRate {
		source = beep.Resample(s.quality, format.SampleRate, s.sampleRate, streamer)
	}

	ctrl := &beep.Ctrl{Streamer: beep.Seq(source, beep.Callback(done)), Paused: false}
	speaker.Play(ctrl)

	stop := func() {
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
	}

	return stop, nil
}
