package api

// This list of postfixes is used in the API:
// - *Request postfix denotes client calls to the relay.
// - *Response postfix denotes relay answers to those calls.
// - *Push postfix denotes notifications initiated by the relay.

type UserStatus string

const (
	UserOnline  UserStatus = "online"
	UserAway    UserStatus = "away"
	UserBusy    UserStatus = "busy"
	UserOffline UserStatus = "offline"
)

type User struct {
	Id           string     `json:"id"`
	UserIdentity string     `json:"userIdentity"`
	Status       UserStatus `json:"status,omitempty"`
}

type HardwareStatus string

const (
	HardwareIsOnline  HardwareStatus = "online"
	HardwareIsBusy    HardwareStatus = "busy"
	HardwareIsOffline HardwareStatus = "offline"
)

type Hardware struct {
	Id             string         `json:"id"`
	DeviceIdentity string         `json:"deviceIdentity"`
	Status         HardwareStatus `json:"status,omitempty"`
}

// CallInfo is the relay's view of a call.
type CallInfo struct {
	Id       string   `json:"id"`
	User     User     `json:"user"`
	Hardware Hardware `json:"hardware"`
}

type (
	LoginRequest struct {
		UserIdentity  string `json:"userIdentity"`
		SecurityToken string `json:"securityToken"`
	}
	LoginResponse struct {
		Status
		User       *User       `json:"user,omitempty"`
		IceServers []IceServer `json:"iceServers,omitempty"`
	}
	LogoutRequest  struct{}
	LogoutResponse struct {
		Status
	}
	StartCallRequest struct {
		HardwareId string `json:"hardwareId"`
		Audio      bool   `json:"audio"`
		Video      bool   `json:"video"`
	}
	StartCallResponse struct {
		Status
		Call *CallInfo `json:"call,omitempty"`
	}
	HangupRequest struct {
		CallId string `json:"callId"`
		Reason string `json:"reason,omitempty"`
	}
	AnswerRequest struct {
		CallId    string      `json:"callId"`
		SdpAnswer Description `json:"sdpAnswer"`
	}
	IceRequest struct {
		CallId    string    `json:"callId"`
		Candidate Candidate `json:"candidate"`
	}
	IncomingMediaRequest struct {
		CallId string `json:"callId"`
		Audio  bool   `json:"audio"`
		Video  bool   `json:"video"`
	}
	// EmptyResponse is the answer to requests that return no data.
	EmptyResponse struct {
		Status
	}
)

type (
	HardwarePush struct {
		Hardware Hardware `json:"hardware"`
	}
	CallAcceptedPush struct {
		CallId   string      `json:"callId"`
		SdpOffer Description `json:"sdpOffer"`
	}
	HangupPush struct {
		CallId string `json:"callId"`
		Reason string `json:"reason,omitempty"`
	}
	IncomingIcePush struct {
		CallId    string    `json:"callId"`
		Candidate Candidate `json:"candidate"`
	}
)
