//go:build mediadevices

package webrtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// DeviceSource captures the system microphone and camera.
type DeviceSource struct {
	codecs *mediadevices.CodecSelector
	log    *logger.Logger
}

func newDeviceSource(conf config.Media, log *logger.Logger) (negotiation.MediaSource, CodecsFun, error) {
	var opts []mediadevices.CodecSelectorOption

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, mediadevices.WithAudioEncoders(&opusParams))

	switch conf.VideoCodec {
	case "vp9":
		vpxParams, err := vpx.NewVP9Params()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, mediadevices.WithVideoEncoders(&vpxParams))
	case "", "vp8", "vpx":
		vpxParams, err := vpx.NewVP8Params()
		if err != nil {
			return nil, nil, err
		}
		vpxParams.BitRate = 1_500_000
		opts = append(opts, mediadevices.WithVideoEncoders(&vpxParams))
	default:
		return nil, nil, fmt.Errorf("unsupported device codec %v", conf.VideoCodec)
	}

	s := &DeviceSource{codecs: mediadevices.NewCodecSelector(opts...), log: log.Module("devices")}
	for _, d := range mediadevices.EnumerateDevices() {
		s.log.Debug().Msgf("Media device %v %q", d.Kind, d.Label)
	}
	codecs := func(m *webrtc.MediaEngine) error { s.codecs.Populate(m); return nil }
	return s, codecs, nil
}

func (s *DeviceSource) GetUserMedia(ctx context.Context, c negotiation.Constraints) (negotiation.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	constraints := mediadevices.MediaStreamConstraints{Codec: s.codecs}
	if c.Audio {
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}
	if c.Video {
		constraints.Video = func(c *mediadevices.MediaTrackConstraints) {
			c.FrameFormat = prop.FrameFormatOneOf{frame.FormatYUYV, frame.FormatI420, frame.FormatI444, frame.FormatRGBA}
			c.Width = prop.IntRanged{Max: 640}
			c.Height = prop.IntRanged{Max: 480}
		}
	}
	ms, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, err
	}
	stream := &Stream{id: newStreamID()}
	for _, t := range ms.GetTracks() {
		dt := &deviceTrack{track: t, enabled: true}
		t.OnEnded(func(err error) {
			if err != nil {
				s.log.Warn().Err(err).Msgf("Local %v track ended", dt.Kind())
			}
		})
		stream.tracks = append(stream.tracks, dt)
	}
	return stream, nil
}

// deviceTrack mutes by taking the track off its sender.
type deviceTrack struct {
	track mediadevices.Track

	mu      sync.Mutex
	enabled bool
	sender  *webrtc.RTPSender
}

func (t *deviceTrack) ID() string                    { return t.track.ID() }
func (t *deviceTrack) Kind() negotiation.MediaKind   { return kindOf(t.track.Kind()) }
func (t *deviceTrack) TrackLocal() webrtc.TrackLocal { return t.track }
func (t *deviceTrack) Stop()                         { _ = t.track.Close() }

func (t *deviceTrack) Enabled() bool { t.mu.Lock(); defer t.mu.Unlock(); return t.enabled }

func (t *deviceTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled == enabled {
		return
	}
	t.enabled = enabled
	t.replace()
}

func (t *deviceTrack) bind(sender *webrtc.RTPSender) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sender = sender
	if !t.enabled {
		t.replace()
	}
}

func (t *deviceTrack) replace() {
	if t.sender == nil {
		return
	}
	var track webrtc.TrackLocal
	if t.enabled {
		track = t.track
	}
	_ = t.sender.ReplaceTrack(track)
}
