// Package platform provides clients for the video/communication platform:
// call control for live sessions and the chat surface for post-meeting
// conversations. Both are defined as interfaces so handlers receive
// injected capabilities rather than ambient globals, and tests substitute
// fakes.
package platform

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// CallType is the call namespace used for meeting sessions. Call ids on the
// wire are "<type>:<meetingId>".
const CallType = "default"

// Video is the call control surface.
type Video interface {
	// EndCall ends the live call session.
	EndCall(ctx context.Context, callID string) error

	// ConnectAssistant joins the agent to the call as a realtime
	// assistant participant with the given behavioral instructions.
	ConnectAssistant(ctx context.Context, callID, agentID, instructions string) error
}

// ChatMessage is one message in a channel's history.
type ChatMessage struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatUser is an identity registered with the chat provider.
type ChatUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// OutgoingMessage is a message posted to a channel.
type OutgoingMessage struct {
	Text string   `json:"text"`
	User ChatUser `json:"user"`
}

// Chat is the chat surface.
type Chat interface {
	// RecentMessages returns up to limit most recent messages for the
	// channel, in chronological order.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]ChatMessage, error)

	// SendMessage posts a message to the channel under the given identity.
	SendMessage(ctx context.Context, channelID string, msg OutgoingMessage) error

	// UpsertUser registers or updates an identity with the chat provider.
	UpsertUser(ctx context.Context, user ChatUser) error
}

// AvatarURI returns a deterministic avatar location for the given seed,
// used when registering agent identities with the chat provider.
func AvatarURI(seed string) string {
	return fmt.Sprintf("https://api.dicebear.com/9.x/bottts-neutral/svg?seed=%s", url.QueryEscape(seed))
}

// ParseCallCID extracts the meeting id from a "<type>:<meetingId>" call cid.
// Returns an empty string when the cid has no id part.
func ParseCallCID(callCID string) string {
	for i := 0; i < len(callCID); i++ {
		if callCID[i] == ':' {
			return callCID[i+1:]
		}
	}
	return ""
}
