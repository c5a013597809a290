// Package responder implements the post-meeting conversational assistant.
// When a chat message arrives on a completed meeting's channel, it answers
// grounded in the stored summary, in the persona of the meeting's agent.
package responder

import (
	"context"
	"fmt"
	"strings"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/llm"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
	"github.com/otherjamesbrown/meetflow/pkg/platform"
	"github.com/otherjamesbrown/meetflow/pkg/store"
)

// historyLimit is how many recent channel messages are replayed as
// conversation context.
const historyLimit = 5

// Reply outcome labels.
const (
	outcomeSent        = "sent"
	outcomeSkippedSelf = "skipped_self"
	outcomeFailed      = "failed"
)

const systemPromptTemplate = `You are an AI assistant helping the user revisit a recently completed meeting. Below is a summary of the meeting, generated from the transcript:

%s

The following are your original instructions from the live meeting assistant. Please continue to follow these behavioral guidelines as you assist the user:

%s

The user may ask questions about the meeting, request clarifications, or ask for follow-up actions. If the summary does not contain enough information to answer a question, politely let the user know.

Be concise, helpful, and focus on providing accurate information from the meeting and the previous conversation.`

// Responder answers chat messages on completed meeting channels. The
// channel id is the meeting id.
type Responder struct {
	store    store.Store
	chat     platform.Chat
	provider llm.Provider
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// New creates a responder.
func New(st store.Store, chat platform.Chat, provider llm.Provider, m *metrics.Metrics, logger logging.Logger) *Responder {
	return &Responder{
		store:    st,
		chat:     chat,
		provider: provider,
		metrics:  m,
		logger:   logger.With(logging.F("component", "responder")),
	}
}

// Respond handles one inbound chat message. Messages authored by the
// meeting's own agent are ignored; without that check every reply would
// trigger another webhook delivery and the agent would talk to itself
// forever.
func (r *Responder) Respond(ctx context.Context, authorID, channelID, text string) error {
	meeting, err := r.store.GetMeeting(ctx, channelID)
	if err != nil {
		return err
	}
	if meeting.Status != store.StatusCompleted || meeting.Summary == nil {
		return fmt.Errorf("meeting %s is not completed: %w", channelID, mferrors.ErrNotFound)
	}

	agent, err := r.store.GetAgent(ctx, meeting.AgentID)
	if err != nil {
		return err
	}

	if authorID == agent.ID {
		r.metrics.ResponderReplies.WithLabelValues(outcomeSkippedSelf).Inc()
		return nil
	}

	history, err := r.chat.RecentMessages(ctx, channelID, historyLimit)
	if err != nil {
		r.metrics.ResponderReplies.WithLabelValues(outcomeFailed).Inc()
		return err
	}

	messages := buildConversation(history, agent.ID, text)
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, *meeting.Summary, agent.Instructions),
		Messages:     messages,
	})
	if err != nil {
		r.metrics.ResponderReplies.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("responder completion failed: %w: %v", mferrors.ErrUpstream, err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		r.metrics.ResponderReplies.WithLabelValues(outcomeFailed).Inc()
		return fmt.Errorf("responder for meeting %s: %w", channelID, mferrors.ErrEmptyCompletion)
	}

	identity := platform.ChatUser{
		ID:    agent.ID,
		Name:  agent.Name,
		Image: platform.AvatarURI(agent.Name),
	}
	if err := r.chat.UpsertUser(ctx, identity); err != nil {
		r.metrics.ResponderReplies.WithLabelValues(outcomeFailed).Inc()
		return err
	}
	if err := r.chat.SendMessage(ctx, channelID, platform.OutgoingMessage{Text: reply, User: identity}); err != nil {
		r.metrics.ResponderReplies.WithLabelValues(outcomeFailed).Inc()
		return err
	}

	r.metrics.ResponderReplies.WithLabelValues(outcomeSent).Inc()
	r.logger.Info("responder replied",
		logging.F("meeting_id", channelID),
		logging.F("agent_id", agent.ID),
		logging.F("reply_bytes", len(reply)))
	return nil
}

// buildConversation replays recent channel history as alternating turns and
// appends the incoming message as the final user turn. Blank history
// messages are dropped.
func buildConversation(history []platform.ChatMessage, agentID, incoming string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := llm.RoleUser
		if m.UserID == agentID {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Text})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: incoming})
}
