package storefront

import (
	"context"
	"io"

	"github.com/logani/storefront/internal/audit"
	"github.com/rs/zerolog"
)

// SessionEvent is a session lifecycle record delivered to an [EventSink].
type SessionEvent = audit.Event

// EventSink receives session events asynchronously.
type EventSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZerologSink    = audit.ZerologSink
)

// Session event types.
const (
	EventLogin          = audit.EventLogin
	EventRegister       = audit.EventRegister
	EventRefresh        = audit.EventRefresh
	EventRefreshFailed  = audit.EventRefreshFailed
	EventReauthRequired = audit.EventReauthRequired
	EventLogout         = audit.EventLogout
)

// NewChannelSink returns a sink a UI can read to react to reauth_required.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZerologSink logs events through log.
func NewZerologSink(log zerolog.Logger) *ZerologSink {
	return audit.NewZerologSink(log)
}

func (c *Client) emit(ctx context.Context, typ string, userID int64, err error, meta map[string]string) {
	if c.events == nil {
		return
	}
	ev := SessionEvent{
		Type:     typ,
		UserID:   userID,
		Success:  err == nil,
		Metadata: meta,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.events.Emit(ctx, ev)
}
