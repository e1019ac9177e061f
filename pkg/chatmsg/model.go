// 文件: pkg/chatmsg/model.go
// ChatMessage: one message in a Platform-X order's chat, persisted so
// chat automation can classify the conversation without re-fetching the
// full history on every tick.

package chatmsg

import "time"

type Sender string

const (
	SenderUs          Sender = "us"
	SenderCounterparty Sender = "counterparty"
	SenderSystem      Sender = "system"
)

type ChatMessage struct {
	ID         int64  `gorm:"primaryKey;column:id"`
	TxnID      int64  `gorm:"column:txn_id;index"`
	ExternalID string `gorm:"column:external_id;uniqueIndex"` // Platform-X message id
	Sender     Sender `gorm:"column:sender"`
	Body       string `gorm:"column:body"`
	SentAt     int64  `gorm:"column:sent_at;index"`
	CreatedAt  int64  `gorm:"column:created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func New(id, txnID int64, externalID string, sender Sender, body string, sentAt int64) *ChatMessage {
	return &ChatMessage{
		ID:         id,
		TxnID:      txnID,
		ExternalID: externalID,
		Sender:     sender,
		Body:       body,
		SentAt:     sentAt,
		CreatedAt:  time.Now().UnixMilli(),
	}
}

// ClassifySender maps the platform's own-account user id against a
// message's sender id: no own-id match and no system flag means the
// counterparty sent it.
func ClassifySender(messageUserID, ourPlatformUserID string, isSystem bool) Sender {
	switch {
	case isSystem:
		return SenderSystem
	case messageUserID == ourPlatformUserID:
		return SenderUs
	default:
		return SenderCounterparty
	}
}
