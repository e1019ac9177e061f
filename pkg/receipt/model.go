// 文件: pkg/receipt/model.go
// Receipt: a bank PDF confirming a fiat transfer, parsed from an email
// attachment and joined against a Payout by the matcher.

package receipt

import "time"

// Fields is the output of parsing a bank PDF's extracted text: every
// value the matcher and audit trail need, independent of which of the
// two bank templates produced it.
type Fields struct {
	DateTime        int64  // unix ms
	Total           int64  // minor units, amount + commission
	Amount          int64  // minor units
	Commission      int64  // minor units, 0 when the receipt reads "без комиссии"
	Status          string
	TransferType    string
	SenderName      string
	SenderAccount   string // masked digits
	RecipientName   string
	RecipientPhone  string // starts with "+7"
	RecipientBank   string
	RecipientCard   string // masked
	OperationID     string
	SBPCode         string
	ReceiptNumber   string
}

// RecipientIdentifier is whichever of phone/card the receipt carries,
// used as the join key against a Payout's wallet.
func (f Fields) RecipientIdentifier() string {
	if f.RecipientPhone != "" {
		return f.RecipientPhone
	}
	return f.RecipientCard
}

type Receipt struct {
	ID             int64  `gorm:"primaryKey;column:id"`
	EmailMessageID string `gorm:"column:email_message_id;uniqueIndex"`
	FileHash       string `gorm:"column:file_hash"` // content hash, used to decide whether a failed parse should retry
	RawText        string `gorm:"column:raw_text"`

	DateTime       int64  `gorm:"column:datetime"`
	Total          int64  `gorm:"column:total"`
	Amount         int64  `gorm:"column:amount"`
	Commission     int64  `gorm:"column:commission"`
	Status         string `gorm:"column:status"`
	TransferType   string `gorm:"column:transfer_type"`
	SenderName     string `gorm:"column:sender_name"`
	SenderAccount  string `gorm:"column:sender_account"`
	RecipientName  string `gorm:"column:recipient_name"`
	RecipientPhone string `gorm:"column:recipient_phone"`
	RecipientBank  string `gorm:"column:recipient_bank"`
	RecipientCard  string `gorm:"column:recipient_card"`
	OperationID    string `gorm:"column:operation_id"`
	SBPCode        string `gorm:"column:sbp_code"`
	ReceiptNumber  string `gorm:"column:receipt_number"`

	ParseError string `gorm:"column:parse_error"` // non-empty means Fields above are incomplete
	Processed  bool   `gorm:"column:processed"`   // matched to a Payout
	PayoutID   int64  `gorm:"column:payout_id"`   // 0 until matched

	CreatedAt int64 `gorm:"column:created_at"`
	UpdatedAt int64 `gorm:"column:updated_at"`
}

func (Receipt) TableName() string {
	return "receipts"
}

func (r *Receipt) Fields() Fields {
	return Fields{
		DateTime: r.DateTime, Total: r.Total, Amount: r.Amount, Commission: r.Commission,
		Status: r.Status, TransferType: r.TransferType, SenderName: r.SenderName,
		SenderAccount: r.SenderAccount, RecipientName: r.RecipientName,
		RecipientPhone: r.RecipientPhone, RecipientBank: r.RecipientBank,
		RecipientCard: r.RecipientCard, OperationID: r.OperationID,
		SBPCode: r.SBPCode, ReceiptNumber: r.ReceiptNumber,
	}
}

func New(id int64, emailMessageID, fileHash, rawText string) *Receipt {
	now := time.Now().UnixMilli()
	return &Receipt{
		ID:             id,
		EmailMessageID: emailMessageID,
		FileHash:       fileHash,
		RawText:        rawText,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (r *Receipt) ApplyFields(f Fields) {
	r.DateTime = f.DateTime
	r.Total = f.Total
	r.Amount = f.Amount
	r.Commission = f.Commission
	r.Status = f.Status
	r.TransferType = f.TransferType
	r.SenderName = f.SenderName
	r.SenderAccount = f.SenderAccount
	r.RecipientName = f.RecipientName
	r.RecipientPhone = f.RecipientPhone
	r.RecipientBank = f.RecipientBank
	r.RecipientCard = f.RecipientCard
	r.OperationID = f.OperationID
	r.SBPCode = f.SBPCode
	r.ReceiptNumber = f.ReceiptNumber
	r.ParseError = ""
}
