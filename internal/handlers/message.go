package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"botqueue/internal/domain"
	"botqueue/internal/ports"
	"botqueue/internal/template"

	"github.com/rs/zerolog/log"
)

// MessagePayload carries either rendered text or a template reference.
type MessagePayload struct {
	RecipientID string            `json:"recipient_id"`
	Message     string            `json:"message,omitempty"`
	TemplateID  string            `json:"template_id,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// MessageSender delivers chat messages through the transport
// capability. Transport errors are retryable; an unknown template or
// empty recipient is not.
type MessageSender struct {
	Transport ports.Transport
	Templates *template.Registry
}

func (s *MessageSender) Handle(ctx context.Context, j domain.Job) error {
	var payload MessagePayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return domain.Permanent(fmt.Errorf("decode message payload: %w", err))
	}
	if payload.RecipientID == "" {
		return domain.Permanent(errors.New("message payload missing recipient_id"))
	}

	content := payload.Message
	if payload.TemplateID != "" {
		rendered, err := s.Templates.Render(payload.TemplateID, payload.Variables)
		if err != nil {
			return domain.Permanent(err)
		}
		content = rendered
	}
	if content == "" {
		return domain.Permanent(errors.New("message payload has no content"))
	}

	delivery, err := s.Transport.SendMessage(ctx, payload.RecipientID, content)
	if err != nil {
		return fmt.Errorf("send to %s: %w", payload.RecipientID, err)
	}

	log.Ctx(ctx).Debug().
		Str("recipient", payload.RecipientID).
		Str("delivery", delivery.ID).
		Msg("message sent")
	return nil
}
