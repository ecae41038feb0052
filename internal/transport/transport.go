package transport

import (
	"context"
	"time"

	"botqueue/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var _ ports.Transport = (*LogSender)(nil)

// LogSender satisfies ports.Transport by logging deliveries. The real
// chat protocol client is wired in by the host application; worker
// processes started without one fall back to this.
type LogSender struct{}

func (LogSender) SendMessage(ctx context.Context, recipientID, content string) (ports.Delivery, error) {
	log.Ctx(ctx).Info().Str("recipient", recipientID).Int("chars", len(content)).Msg("message delivered (log transport)")
	return ports.Delivery{
		ID:     "msg-" + uuid.NewString(),
		SentAt: time.Now().UnixMilli(),
	}, nil
}
