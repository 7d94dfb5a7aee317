package disambiguation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-queryrefine-be/internal/pkg/logger"
	"ai-queryrefine-be/pkg/resolver"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// PromptSender delivers a frame to every connection of a chat session
type PromptSender interface {
	SendToSession(sessionID string, payload []byte) int
}

// SocketPort asks over the websocket hub and waits for the matching reply on an in-process bus
type SocketPort struct {
	pubSub *gochannel.GoChannel
	sender PromptSender
	logger logger.ILogger
}

var _ resolver.Disambiguator = (*SocketPort)(nil)

func NewSocketPort(pubSub *gochannel.GoChannel, sender PromptSender, log logger.ILogger) *SocketPort {
	return &SocketPort{pubSub: pubSub, sender: sender, logger: log}
}

func (p *SocketPort) Ask(ctx context.Context, req resolver.DisambiguationRequest) (resolver.Choice, error) {
	requestID := uuid.NewString()

	// subscribe before sending so a fast reply cannot be lost
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	replies, err := p.pubSub.Subscribe(subCtx, topic(requestID))
	if err != nil {
		return resolver.Choice{}, fmt.Errorf("subscribe reply topic: %w", err)
	}

	var expires time.Time
	if req.Timeout > 0 {
		expires = time.Now().Add(req.Timeout)
	}
	frame, err := encodePrompt(Prompt{
		RequestID:  requestID,
		Prompt:     req.Prompt,
		Candidates: req.Candidates,
		AllowNone:  req.AllowNone,
		ExpiresAt:  expires,
	})
	if err != nil {
		return resolver.Choice{}, fmt.Errorf("encode prompt: %w", err)
	}

	delivered := p.sender.SendToSession(req.SessionID, frame)
	p.logger.Info("Disambiguation", "Prompt sent", map[string]interface{}{
		"request_id": requestID,
		"session_id": req.SessionID,
		"candidates": len(req.Candidates),
		"allow_none": req.AllowNone,
		"local":      delivered,
	})

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return resolver.Choice{}, ctx.Err()
		case <-timeout:
			return resolver.Choice{Kind: resolver.ChoiceTimeout}, nil
		case msg, ok := <-replies:
			if !ok {
				return resolver.Choice{}, fmt.Errorf("reply subscription closed")
			}
			msg.Ack()

			var reply Reply
			if err := json.Unmarshal(msg.Payload, &reply); err != nil {
				p.logger.Warn("Disambiguation", "Dropping malformed reply", map[string]interface{}{"request_id": requestID, "error": err.Error()})
				continue
			}
			if reply.SessionID != "" && reply.SessionID != req.SessionID {
				p.logger.Warn("Disambiguation", "Dropping reply from another session", map[string]interface{}{"request_id": requestID})
				continue
			}
			if reply.None && req.AllowNone {
				return resolver.Choice{Kind: resolver.ChoiceNone}, nil
			}
			return resolver.Choice{Kind: resolver.ChoiceSelected, Value: reply.Value}, nil
		}
	}
}

// Deliver routes a reply to the waiting Ask. Replies for unknown requests are dropped by the bus.
func (p *SocketPort) Deliver(reply Reply) error {
	payload, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return p.pubSub.Publish(topic(reply.RequestID), message.NewMessage(watermill.NewUUID(), payload))
}

// HandleFrame parses a raw websocket frame and delivers it. It matches the hub's reply handler signature.
func (p *SocketPort) HandleFrame(sessionID string, raw []byte) {
	reply, err := ParseReply(raw)
	if err != nil {
		p.logger.Warn("Disambiguation", "Ignoring client frame", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return
	}
	reply.SessionID = sessionID
	if err := p.Deliver(reply); err != nil {
		p.logger.Error("Disambiguation", "Failed to deliver reply", map[string]interface{}{"request_id": reply.RequestID, "error": err.Error()})
	}
}
