package webrtc

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/pion/webrtc/v4"
)

const (
	SourceStatic  = "static"
	SourceDevices = "devices"
)

// an Opus frame of silence (TOC 0xf8, 20ms)
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const silenceFrame = 20 * time.Millisecond

// NewMediaSource makes the configured media source and returns
// the codecs the peer connections should register for it.
func NewMediaSource(conf config.Media, log *logger.Logger) (negotiation.MediaSource, CodecsFun, error) {
	switch conf.Source {
	case "", SourceStatic:
		return &SampleSource{AudioCodec: conf.AudioCodec, VideoCodec: conf.VideoCodec, Silence: true, log: log}, nil, nil
	case SourceDevices:
		return newDeviceSource(conf, log)
	}
	return nil, nil, fmt.Errorf("unknown media source %q", conf.Source)
}

// Stream is a set of local tracks sharing the same id.
type Stream struct {
	id     string
	tracks []negotiation.Track
}

func (s *Stream) ID() string                  { return s.id }
func (s *Stream) Tracks() []negotiation.Track { return s.tracks }

func newStreamID() string { return uuid.Must(uuid.NewV4()).String() }

// SampleSource makes tracks fed with samples by the app.
// With Silence the audio tracks send silence on their own.
type SampleSource struct {
	AudioCodec string
	VideoCodec string
	Silence    bool

	log *logger.Logger
}

func NewSampleSource(audioCodec, videoCodec string, log *logger.Logger) *SampleSource {
	return &SampleSource{AudioCodec: audioCodec, VideoCodec: videoCodec, log: log}
}

func (s *SampleSource) GetUserMedia(ctx context.Context, c negotiation.Constraints) (negotiation.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream := &Stream{id: newStreamID()}
	add := func(kind negotiation.MediaKind, codec string) error {
		t, err := NewLocalTrack(kind, codec, stream.id)
		if err != nil {
			return err
		}
		stream.tracks = append(stream.tracks, t)
		return nil
	}
	if c.Audio {
		if err := add(negotiation.Audio, s.AudioCodec); err != nil {
			return nil, err
		}
	}
	if c.Video {
		if err := add(negotiation.Video, s.VideoCodec); err != nil {
			return nil, err
		}
	}
	if s.Silence {
		for _, t := range stream.tracks {
			if lt := t.(*LocalTrack); lt.kind == negotiation.Audio && lt.Codec() == webrtc.MimeTypeOpus {
				go s.silence(lt)
			}
		}
	}
	return stream, nil
}

func (s *SampleSource) silence(t *LocalTrack) {
	ticker := time.NewTicker(silenceFrame)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
			if err := t.WriteSample(opusSilence, silenceFrame); err != nil && s.log != nil {
				s.log.Debug().Err(err).Msg("silence")
			}
		}
	}
}
