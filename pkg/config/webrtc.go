package config

import (
	"fmt"
	"strings"
)

type Webrtc struct {
	DisableDefaultInterceptors bool
	DtlsRole                   byte
	// IceServers are used when the relay hands out none at login.
	IceServers []IceServer
	IcePorts   struct {
		Min uint16
		Max uint16
	}
	IceIpMap   string
	IceLite    bool
	SinglePort int
	LogLevel   int
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (w *Webrtc) HasDtlsRole() bool   { return w.DtlsRole > 0 }
func (w *Webrtc) HasPortRange() bool  { return w.IcePorts.Min > 0 && w.IcePorts.Max > 0 }
func (w *Webrtc) HasSinglePort() bool { return w.SinglePort > 0 }
func (w *Webrtc) HasIceIpMap() bool   { return w.IceIpMap != "" }

func (s IceServer) IsTurn() bool {
	return strings.HasPrefix(s.Urls, "turn:") || strings.HasPrefix(s.Urls, "turns:")
}

// AddIceServersEnv replaces or appends the servers set with
// P2PCALL_WEBRTC_ICESERVERS[i]_* variables.
func (w *Webrtc) AddIceServersEnv() error {
	cfg := struct{ Webrtc Webrtc }{Webrtc{IceServers: []IceServer{{}, {}, {}, {}, {}}}}
	if err := LoadConfigEnv(&cfg); err != nil {
		return err
	}
	for i, ice := range cfg.Webrtc.IceServers {
		if ice.Urls == "" {
			continue
		}
		if i > len(w.IceServers)-1 {
			w.IceServers = append(w.IceServers, ice)
		} else {
			w.IceServers[i] = ice
		}
	}
	return w.Validate()
}

func (w *Webrtc) Validate() error {
	for _, ice := range w.IceServers {
		if ice.IsTurn() && (ice.Username == "" || ice.Credential == "") {
			return fmt.Errorf("TURN or TURNS servers should have both username and credential: %+v", ice)
		}
	}
	if w.HasPortRange() && w.IcePorts.Min > w.IcePorts.Max {
		return fmt.Errorf("bad ICE port range %v-%v", w.IcePorts.Min, w.IcePorts.Max)
	}
	return nil
}
