//go:build !mediadevices

package webrtc

import (
	"errors"
	"testing"

	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/logger"
)

func TestNoDevices(t *testing.T) {
	_, _, err := NewMediaSource(config.Media{Source: SourceDevices}, logger.Nop())
	if !errors.Is(err, ErrNoDevices) {
		t.Errorf("got %v", err)
	}
}
