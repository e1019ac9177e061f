// 文件: pkg/chatautomation/steps.go
// Chat automation drives a Transaction's conversation through a small
// declarative step table: each step says what to look for in the
// counterparty's latest message and what to do about it. No step ever
// sends a message whose idempotency token it didn't mint itself, so a
// retried tick never double-sends. Every prompt and classifier is
// Russian-language, matching how counterparties actually reply on
// Platform-X chat.
package chatautomation

import (
	"fmt"
	"strings"

	"github.com/itrader/agent/pkg/chatmsg"
	"github.com/itrader/agent/pkg/payout"
	"github.com/itrader/agent/pkg/txn"
)

// Classifier inspects the latest counterparty message (nil if none has
// arrived yet), the Transaction, and its Payout, and reports whether
// this step's condition is satisfied.
type Classifier func(latest *chatmsg.ChatMessage, t *txn.Transaction, p *payout.Payout) bool

// Step is one row of the chat automation table: from FromStep, if
// Classifier matches, send Reply (or ReplyFn's output) and advance to
// ToStep with NewStatus. If StupidClassifier matches first, the
// Transaction is routed to the stupid terminal state instead.
type Step struct {
	FromStep         int
	Classifier       Classifier
	StupidClassifier Classifier // checked before Classifier; nil means this step never routes to stupid
	Reply            string     // empty (with ReplyFn nil too) means "advance without sending a message"
	ReplyFn          func(p *payout.Payout) string
	ToStep           int
	NewStatus        txn.Status
}

func always(*chatmsg.ChatMessage, *txn.Transaction, *payout.Payout) bool { return true }

// latestWord reports whether the counterparty's latest message, once
// lower-cased, equals or contains word.
func latestWord(latest *chatmsg.ChatMessage, word string) bool {
	if latest == nil || latest.Sender != chatmsg.SenderCounterparty {
		return false
	}
	return strings.Contains(strings.ToLower(latest.Body), word)
}

func containsAny(keywords ...string) Classifier {
	return func(latest *chatmsg.ChatMessage, _ *txn.Transaction, _ *payout.Payout) bool {
		if latest == nil || latest.Sender != chatmsg.SenderCounterparty {
			return false
		}
		body := strings.ToLower(latest.Body)
		for _, k := range keywords {
			if strings.Contains(body, k) {
				return true
			}
		}
		return false
	}
}

// isYes/isNo classify the physical-person confirmation reply.
func isYes(latest *chatmsg.ChatMessage, _ *txn.Transaction, _ *payout.Payout) bool {
	return latestWord(latest, "да")
}

func isNo(latest *chatmsg.ChatMessage, _ *txn.Transaction, _ *payout.Payout) bool {
	return latestWord(latest, "нет")
}

// bankMatches/bankMismatches compare the counterparty's stated bank
// against payout.Bank, the bank Platform-D told us to expect.
func bankMatches(latest *chatmsg.ChatMessage, _ *txn.Transaction, p *payout.Payout) bool {
	if latest == nil || latest.Sender != chatmsg.SenderCounterparty || p == nil || p.Bank == "" {
		return false
	}
	return strings.Contains(strings.ToLower(latest.Body), strings.ToLower(p.Bank))
}

func bankMismatches(latest *chatmsg.ChatMessage, t *txn.Transaction, p *payout.Payout) bool {
	if latest == nil || latest.Sender != chatmsg.SenderCounterparty || p == nil || p.Bank == "" {
		return false
	}
	return !bankMatches(latest, t, p)
}

// receiptAlreadyMatched reports whether the Receipt Processor has
// already moved t to check_received out-of-band, independent of
// anything the counterparty types in chat.
func receiptAlreadyMatched(_ *chatmsg.ChatMessage, t *txn.Transaction, _ *payout.Payout) bool {
	return t.Status == txn.StatusCheckReceived
}

func paymentInstructions(p *payout.Payout) string {
	if p == nil {
		return "Переведите, пожалуйста, сумму по указанным в объявлении реквизитам и сообщите, когда оплатите."
	}
	return fmt.Sprintf("Переведите, пожалуйста, %d на %s и напишите \"оплатил\", когда перевод будет сделан.", p.AmountMinor, p.Wallet)
}

func bankPrompt(p *payout.Payout) string {
	if p == nil || p.Bank == "" {
		return "Через какой банк будете переводить? Напишите название банка."
	}
	return fmt.Sprintf("Подтвердите, пожалуйста: перевод будет через %s?", p.Bank)
}

// Steps is the full conversation script:
//
//	0 chat_started      -> ask "вы физическое лицо?"          -> 1 chat_started
//	1 chat_started     -> wait да/нет                         -> 2 chat_started   (no    -> stupid)
//	2 chat_started      -> ask to confirm the recipient bank   -> 3 chat_started
//	3 chat_started      -> wait for the bank name              -> 4 waiting_payment (mismatch -> stupid)
//	4 waiting_payment    -> send payment instructions           -> 5 waiting_payment
//	5 waiting_payment    -> wait for "оплатил"                  -> 6 payment_received
//	6 payment_received   -> ask for a receipt                   -> 7 payment_received
//	7 payment_received   -> wait for the Receipt Processor match -> 8 check_received
//	8 check_received     -> thank and close                      -> 9 check_received
//
// Step 9 has no table row: once reached, automation has nothing left to
// say and leaves the Transaction to release/reissue.
var Steps = []Step{
	{
		FromStep:  0,
		Classifier: always,
		Reply:     "Здравствуйте! Вы физическое лицо? (да/нет)",
		ToStep:    1,
		NewStatus: txn.StatusChatStarted,
	},
	{
		FromStep:         1,
		StupidClassifier: isNo,
		Classifier:       isYes,
		Reply:            "",
		ToStep:           2,
		NewStatus:        txn.StatusChatStarted,
	},
	{
		FromStep:  2,
		Classifier: always,
		ReplyFn:   bankPrompt,
		ToStep:    3,
		NewStatus: txn.StatusChatStarted,
	},
	{
		FromStep:         3,
		StupidClassifier: bankMismatches,
		Classifier:       bankMatches,
		Reply:            "",
		ToStep:           4,
		NewStatus:        txn.StatusWaitingPayment,
	},
	{
		FromStep:  4,
		Classifier: always,
		ReplyFn:   paymentInstructions,
		ToStep:    5,
		NewStatus: txn.StatusWaitingPayment,
	},
	{
		FromStep:   5,
		Classifier: containsAny("оплатил", "отправил", "перевел", "перевёл", "готово"),
		Reply:      "",
		ToStep:     6,
		NewStatus:  txn.StatusPaymentReceived,
	},
	{
		FromStep:  6,
		Classifier: always,
		Reply:     "Спасибо! Пришлите, пожалуйста, чек или скриншот перевода.",
		ToStep:    7,
		NewStatus: txn.StatusPaymentReceived,
	},
	{
		FromStep:   7,
		Classifier: receiptAlreadyMatched,
		Reply:      "",
		ToStep:     8,
		NewStatus:  txn.StatusCheckReceived,
	},
	{
		FromStep:  8,
		Classifier: always,
		Reply:     "Оплата подтверждена, переводим средства. Спасибо!",
		ToStep:    9,
		NewStatus: txn.StatusCheckReceived,
	},
}

// ForStep returns the table row matching chatStep, or false if chatStep
// is past the end of the script (nothing left for automation to do).
func ForStep(chatStep int) (Step, bool) {
	for _, s := range Steps {
		if s.FromStep == chatStep {
			return s, true
		}
	}
	return Step{}, false
}
