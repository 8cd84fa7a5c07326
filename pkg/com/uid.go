package com

import "github.com/rs/xid"

// Uid is a packet id.
type Uid struct {
	xid.ID
}

var NilUid = Uid{xid.NilID()}

func NewUid() Uid { return Uid{xid.New()} }

func (u Uid) IsEmpty() bool { return u.IsNil() }

// Short is a compact form of the id for logs.
func (u Uid) Short() string {
	s := u.String()
	if len(s) < 7 {
		return s
	}
	return s[:3] + "." + s[len(s)-3:]
}
