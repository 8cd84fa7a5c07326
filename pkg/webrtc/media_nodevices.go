//go:build !mediadevices

package webrtc

import (
	"errors"

	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
)

var ErrNoDevices = errors.New("built without device capture, use -tags mediadevices")

func newDeviceSource(config.Media, *logger.Logger) (negotiation.MediaSource, CodecsFun, error) {
	return nil, nil, ErrNoDevices
}
