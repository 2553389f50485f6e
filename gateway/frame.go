// Package gateway connects gatekeeper to a platform bridge over websocket.
//
// The bridge pushes member_join frames and accepts kick and post requests,
// answering each request with an ack frame carrying the same id.
package gateway

import (
	"encoding/json"
	"fmt"
)

// Frame operations.
const (
	OpIdentify   = "identify"
	OpMemberJoin = "member_join"
	OpKick       = "kick"
	OpPost       = "post"
	OpAck        = "ack"
)

// Frame is the envelope of every message on the bridge connection.
type Frame struct {
	Op string          `json:"op"`
	ID string          `json:"id,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// IdentifyPayload authenticates the client.
type IdentifyPayload struct {
	Token string `json:"token"`
}

// KickPayload asks the bridge to remove a member.
type KickPayload struct {
	GuildID  string `json:"guild_id"`
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}

// PostPayload asks the bridge to send a message.
type PostPayload struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// AckPayload answers a request.
type AckPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ActionError is a request the bridge reported as failed.
type ActionError struct {
	Op      string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s rejected by platform: %s", e.Op, e.Message)
}

// NewFrame encodes a payload into a frame.
func NewFrame(op, id string, payload any) (*Frame, error) {
	frame := &Frame{Op: op, ID: id}
	if payload == nil {
		return frame, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", op, err)
	}
	frame.D = data

	return frame, nil
}
