package main

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/monitoring"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	xos "github.com/p2pcall/p2pcall/pkg/os"
	"github.com/p2pcall/p2pcall/pkg/service"
	"github.com/p2pcall/p2pcall/pkg/session"
	"github.com/p2pcall/p2pcall/pkg/signaling"
	"github.com/p2pcall/p2pcall/pkg/webrtc"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf, err := config.NewConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}

	log := logger.NewConsole(conf.Debug, "p", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	if err = run(conf, log); err != nil {
		log.Fatal().Err(err).Msg("p2pcall")
	}
}

func run(conf config.Config, log *logger.Logger) error {
	term := xos.ExpectTermination()
	lock, err := xos.NewFileLock(conf.LockFile)
	if err != nil {
		return err
	}
	if ok, err := lock.TryLock(); err != nil || !ok {
		return errors.Join(errors.New("another client holds "+lock.Path()), err)
	}
	defer func() { _ = lock.Unlock() }()

	var services service.Group
	var reg prometheus.Registerer
	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, log)
		if err != nil {
			return err
		}
		reg = mon.Registry()
		services.Add(mon)
	}
	services.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := services.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()

	media, codecs, err := webrtc.NewMediaSource(conf.Media, log)
	if err != nil {
		return err
	}
	peers, err := webrtc.NewApiFactory(conf.Webrtc, codecs, log, nil)
	if err != nil {
		return err
	}

	var opts []session.Option
	if reg != nil {
		opts = append(opts, session.WithMetrics(session.NewMetrics(reg)))
	}
	s := session.New(
		signaling.New(log, signaling.WithCallTimeout(conf.Signaling.CallTimeout)),
		negotiation.New(peers, media, log),
		log,
		opts...,
	)
	defer s.Close()

	done := make(chan struct{})
	var ended atomic.Bool
	end := func() {
		if ended.CompareAndSwap(false, true) {
			close(done)
		}
	}
	watch(s, log, end)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = s.Connect(ctx, conf.Signaling.Address); err != nil {
		return err
	}
	defer s.Disconnect()

	user, err := s.Authenticate(ctx, conf.User.Identity, conf.User.Token)
	if err != nil {
		return err
	}
	log.Info().Msgf("Logged in as %v (%v)", user.UserIdentity, user.Id)

	var timeout <-chan time.Time
	if c := conf.Call; c.Target != "" {
		call, err := s.StartCall(ctx, c.Target, c.ReceiveAudio, c.ReceiveVideo, c.SendAudio)
		if err != nil {
			return err
		}
		log.Info().Msgf("Calling %v, call %v", c.Target, call.Id)
		if c.Duration > 0 {
			timeout = time.After(c.Duration)
		}
	}

	select {
	case <-term:
		log.Info().Msg("Terminated")
	case <-timeout:
		log.Info().Msg("Call time is over")
	case <-done:
	}

	if err = s.HangupCall("bye"); err != nil &&
		!errors.Is(err, session.ErrNoActiveCall) && !errors.Is(err, session.ErrUnauthenticated) {
		log.Warn().Err(err).Msg("hangup")
	}
	return nil
}

// watch logs the session events and reads the remote media.
// end is called when the call or the connection is over.
func watch(s *session.Session, log *logger.Logger, end func()) {
	s.On(session.EventPeerOnline, func(e session.Event) {
		log.Info().Msgf("Device %v is online", e.(session.PeerOnline).Hardware.Id)
	})
	s.On(session.EventPeerOffline, func(e session.Event) {
		log.Info().Msgf("Device %v is offline", e.(session.PeerOffline).Hardware.Id)
	})
	s.On(session.EventRemoteMedia, func(e session.Event) {
		m := e.(session.RemoteMedia)
		log.Info().Msgf("Receiving %v from call %v", m.Track.Kind(), m.CallId)
		if t, ok := m.Track.(*webrtc.RemoteTrack); ok {
			go func() {
				var bytes atomic.Int64
				t.Drain(func(n int) { bytes.Add(int64(n)) })
				log.Debug().Msgf("Track %v ended after %v bytes", t.ID(), bytes.Load())
			}()
		}
	})
	s.On(session.EventHangup, func(e session.Event) {
		h := e.(session.Hangup)
		log.Info().Msgf("Call %v is over: %v", h.Call.Id, h.Reason)
		end()
	})
	s.On(session.EventError, func(e session.Event) {
		log.Error().Err(e.(session.Error).Err).Msg("call")
	})
	s.On(session.EventDisconnected, func(e session.Event) {
		if err := e.(session.Disconnected).Err; err != nil {
			log.Warn().Err(err).Msg("Signaling connection lost")
		}
		end()
	})
}
