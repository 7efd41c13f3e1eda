package bridge

import (
	"encoding/json"

	"github.com/stg-network/chat-relay/internal/errors"
	"github.com/stg-network/chat-relay/internal/metrics"
	"github.com/stg-network/chat-relay/internal/registry"
	"github.com/stg-network/chat-relay/internal/relay"
	"go.uber.org/zap"
)

type imageProcessingPayload struct {
	UserID *int64 `json:"user_id"`
	Path   string `json:"path"`
}

type imageUploadedPush struct {
	UserID   int64  `json:"userId"`
	FilePath string `json:"filePath"`
}

// readReceiptEnvelope matches the backend's queue envelope: the receipt
// itself lives under data, sibling envelope fields are ignored.
type readReceiptEnvelope struct {
	Data *readReceiptData `json:"data"`
}

type readReceiptData struct {
	RoomID          *int64  `json:"roomId"`
	MessageIDs      []int64 `json:"messageIds"`
	ReadAt          string  `json:"readAt"`
	RecipientUserID *int64  `json:"recipientUserId"`
}

type messageReadPush struct {
	RoomID     int64   `json:"roomId"`
	MessageIDs []int64 `json:"messageIds"`
	ReadAt     string  `json:"readAt"`
}

// handleImageProcessing turns a processing-complete notice into an
// image_uploaded push, delayed to let the backend finish writing the file
// before clients fetch it.
func (b *Bridge) handleImageProcessing(payload []byte) {
	channel := b.cfg.ImageProcessingChannel

	var msg imageProcessingPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.rejectMessage(channel, errors.DecodeError(channel, err))
		return
	}
	if msg.UserID == nil || msg.Path == "" {
		b.rejectMessage(channel, errors.EventValidationError(channel, "user_id and path are required"))
		return
	}

	metrics.BridgeMessages.WithLabelValues(channel, "accepted").Inc()

	push := imageUploadedPush{UserID: *msg.UserID, FilePath: msg.Path}
	b.schedulePush(b.cfg.ImagePushDelay, registry.UserKey(*msg.UserID), relay.PushImageUploaded, push)
}

// handleReadReceipt forwards a read receipt to the recipient's user
// channel. The recipient id steers delivery only and is stripped from the
// pushed payload.
func (b *Bridge) handleReadReceipt(payload []byte) {
	channel := b.cfg.ChatReadEventsChannel

	var envelope readReceiptEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.rejectMessage(channel, errors.DecodeError(channel, err))
		return
	}
	data := envelope.Data
	if data == nil || data.RoomID == nil || len(data.MessageIDs) == 0 || data.ReadAt == "" || data.RecipientUserID == nil {
		b.rejectMessage(channel, errors.EventValidationError(channel, "roomId, messageIds, readAt and recipientUserId are required"))
		return
	}

	metrics.BridgeMessages.WithLabelValues(channel, "accepted").Inc()

	push := messageReadPush{RoomID: *data.RoomID, MessageIDs: data.MessageIDs, ReadAt: data.ReadAt}
	sent := b.reg.Broadcast(registry.UserKey(*data.RecipientUserID), relay.PushMessageRead, push, nil)
	b.log.Debug("Delivered read receipt",
		zap.Int64("recipient", *data.RecipientUserID),
		zap.Int64("room", *data.RoomID),
		zap.Int("recipients", sent))
}

// rejectMessage records a discarded bus message. One bad message never
// affects the subscription or its neighbors.
func (b *Bridge) rejectMessage(channel string, err error) {
	metrics.BridgeMessages.WithLabelValues(channel, "rejected").Inc()
	metrics.IncrementErrorCount()
	b.log.Warn("Discarded malformed event-bus message",
		zap.String("channel", channel),
		zap.Error(err))
}
