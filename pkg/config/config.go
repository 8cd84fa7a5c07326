package config

import (
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	Debug      bool
	LockFile   string
	Signaling  Signaling
	User       User
	Call       Call
	Media      Media
	Webrtc     Webrtc
	Monitoring Monitoring
}

type Signaling struct {
	Address     string        `validate:"required"`
	CallTimeout time.Duration `default:"5s"`
}

type User struct {
	Identity string
	Token    string
}

// Call is the call the client makes once logged in.
type Call struct {
	Target       string
	ReceiveAudio bool
	ReceiveVideo bool
	SendAudio    bool
	// Duration ends the call after the time, zero means never.
	Duration time.Duration
}

type Media struct {
	// Source is either "static" (silent generated tracks) or "devices".
	Source     string `default:"static"`
	AudioCodec string `default:"opus"`
	VideoCodec string `default:"vp8"`
}

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool
	ProfilingEnabled bool
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// NewConfig reads the configuration file, the environment and
// the command line flags, the latter win.
func NewConfig(args []string) (conf Config, err error) {
	pre := pflag.NewFlagSet("config", pflag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}
	path := pre.StringP("config", "c", "", "Path to the configuration file directory")
	_ = pre.Parse(args)

	if err = LoadConfig(&conf, *path); err != nil {
		return
	}
	if err = conf.Webrtc.AddIceServersEnv(); err != nil {
		return
	}

	fs := pflag.NewFlagSet("p2pcall", pflag.ContinueOnError)
	fs.StringP("config", "c", *path, "Path to the configuration file directory")
	conf.AddFlags(fs)
	err = fs.Parse(args)
	return
}

func (c *Config) AddFlags(fs *pflag.FlagSet) *Config {
	fs.BoolVarP(&c.Debug, "debug", "d", c.Debug, "Verbose logs")
	fs.StringVar(&c.LockFile, "lock", c.LockFile, "Single instance lock file")
	fs.StringVarP(&c.Signaling.Address, "address", "a", c.Signaling.Address, "Relay websocket address")
	fs.StringVarP(&c.User.Identity, "identity", "u", c.User.Identity, "User identity")
	fs.StringVar(&c.User.Token, "token", c.User.Token, "User security token")
	fs.StringVarP(&c.Call.Target, "target", "t", c.Call.Target, "Hardware id to call")
	fs.BoolVar(&c.Call.ReceiveAudio, "recvAudio", c.Call.ReceiveAudio, "Receive remote audio")
	fs.BoolVar(&c.Call.ReceiveVideo, "recvVideo", c.Call.ReceiveVideo, "Receive remote video")
	fs.BoolVar(&c.Call.SendAudio, "sendAudio", c.Call.SendAudio, "Send local audio")
	fs.DurationVar(&c.Call.Duration, "duration", c.Call.Duration, "Hang up after the time")
	fs.StringVar(&c.Media.Source, "media", c.Media.Source, "Local media source: [static, devices]")
	return c
}
