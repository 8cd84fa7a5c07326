package webrtc

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// LocalTrack is a track fed with encoded samples by the app.
// Samples written while the track is muted are dropped.
type LocalTrack struct {
	track   *webrtc.TrackLocalStaticSample
	kind    negotiation.MediaKind
	enabled atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func NewLocalTrack(kind negotiation.MediaKind, codec, streamID string) (*LocalTrack, error) {
	mime, err := mimeOf(kind, codec)
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mime}, string(kind), streamID)
	if err != nil {
		return nil, err
	}
	t := &LocalTrack{track: track, kind: kind, done: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *LocalTrack) ID() string                    { return t.track.ID() }
func (t *LocalTrack) Kind() negotiation.MediaKind   { return t.kind }
func (t *LocalTrack) Enabled() bool                 { return t.enabled.Load() }
func (t *LocalTrack) SetEnabled(enabled bool)       { t.enabled.Store(enabled) }
func (t *LocalTrack) TrackLocal() webrtc.TrackLocal { return t.track }
func (t *LocalTrack) Codec() string                 { return t.track.Codec().MimeType }

// Done is closed when the track stops.
func (t *LocalTrack) Done() <-chan struct{} { return t.done }

func (t *LocalTrack) Stop() { t.once.Do(func() { close(t.done) }) }

func (t *LocalTrack) stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *LocalTrack) WriteSample(data []byte, duration time.Duration) error {
	if !t.Enabled() || t.stopped() {
		return nil
	}
	return t.track.WriteSample(media.Sample{Data: data, Duration: duration})
}

func mimeOf(kind negotiation.MediaKind, codec string) (mime string, err error) {
	codec = strings.ToLower(codec)
	switch kind {
	case negotiation.Audio:
		switch codec {
		case "opus":
			mime = webrtc.MimeTypeOpus
		case "pcmu":
			mime = webrtc.MimeTypePCMU
		case "pcma":
			mime = webrtc.MimeTypePCMA
		}
	case negotiation.Video:
		switch codec {
		case "h264":
			mime = webrtc.MimeTypeH264
		case "vpx", "vp8":
			mime = webrtc.MimeTypeVP8
		case "vp9":
			mime = webrtc.MimeTypeVP9
		}
	}
	if mime == "" {
		err = fmt.Errorf("unsupported codec %s:%s", kind, codec)
	}
	return
}
