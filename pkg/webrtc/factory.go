// Package webrtc implements the peer connection and the local media
// the negotiation engine works with on top of pion/webrtc.
package webrtc

import (
	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/p2pcall/p2pcall/pkg/network/socket"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

type ApiFactory struct {
	api     *webrtc.API
	servers []webrtc.ICEServer
	log     *logger.Logger
}

// ModApiFun allows to tweak the pion API before it is built.
type ModApiFun func(m *webrtc.MediaEngine, i *interceptor.Registry, s *webrtc.SettingEngine)

// CodecsFun registers the codecs of a media source.
// The default pion codecs are used when nil.
type CodecsFun func(m *webrtc.MediaEngine) error

func NewApiFactory(conf config.Webrtc, codecs CodecsFun, log *logger.Logger, mod ModApiFun) (*ApiFactory, error) {
	log = log.Module("webrtc")

	m := &webrtc.MediaEngine{}
	if codecs == nil {
		codecs = func(m *webrtc.MediaEngine) error { return m.RegisterDefaultCodecs() }
	}
	if err := codecs(m); err != nil {
		return nil, err
	}
	i := &interceptor.Registry{}
	if !conf.DisableDefaultInterceptors {
		if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return nil, err
		}
	}

	customLogger := logger.NewPionLogger(log, conf.LogLevel)
	s := webrtc.SettingEngine{LoggerFactory: customLogger}
	if conf.HasDtlsRole() {
		log.Info().Msgf("A custom DTLS role [%v]", conf.DtlsRole)
		if err := s.SetAnsweringDTLSRole(webrtc.DTLSRole(conf.DtlsRole)); err != nil {
			return nil, err
		}
	}
	if conf.IceLite {
		s.SetLite(true)
	}
	if conf.HasPortRange() {
		if err := s.SetEphemeralUDPPortRange(conf.IcePorts.Min, conf.IcePorts.Max); err != nil {
			return nil, err
		}
	}
	if conf.HasSinglePort() {
		udp, err := socket.ListenUDPRoll(conf.SinglePort)
		if err != nil {
			return nil, err
		}
		s.SetICEUDPMux(webrtc.NewICEUDPMux(customLogger, udp))
		log.Info().Msgf("The single port mode is active for %s", udp.LocalAddr())
	}
	if conf.HasIceIpMap() {
		s.SetNAT1To1IPs([]string{conf.IceIpMap}, webrtc.ICECandidateTypeHost)
		log.Info().Msgf("The NAT mapping is active for %v", conf.IceIpMap)
	}

	if mod != nil {
		mod(m, i, &s)
	}

	return &ApiFactory{
		api:     webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		servers: iceServers(ConfIceServers(conf.IceServers)),
		log:     log,
	}, nil
}

// NewPeer makes a new peer connection with the servers or,
// if there are none, with the configured ones.
func (a *ApiFactory) NewPeer(servers []api.IceServer) (negotiation.PeerConnection, error) {
	c := webrtc.Configuration{ICEServers: a.servers}
	if len(servers) > 0 {
		c.ICEServers = iceServers(servers)
	}
	conn, err := a.api.NewPeerConnection(c)
	if err != nil {
		return nil, err
	}
	return newPeer(conn, a.log), nil
}
