// 文件: pkg/receipt/parser.go
// Parses the raw text already extracted from a bank PDF into Fields.
// Two template variants exist: "columnar" (all labels appear as one
// contiguous block, followed by all values in the same order) and
// "sequential" (each label is immediately followed by its own value).
// Detection and extraction are both pure functions over the input
// string, decomposed the way a risk calculation is broken into small
// steps over an already-loaded position.

package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var requiredLabels = []string{
	"datetime", "total", "amount", "commission", "status", "transferType",
	"senderName", "senderAccount", "recipientName", "recipientPhone",
	"recipientBank", "recipientCard", "operationId", "sbpCode",
	"receiptNumber",
}

// labelPatterns maps an output field to the label text used in both
// template variants.
var labelPatterns = map[string]string{
	"datetime":      `Дата и время`,
	"total":         `Сумма списания|Итого`,
	"amount":        `Сумма перевода|Сумма`,
	"commission":    `Комиссия`,
	"status":        `Статус`,
	"transferType":  `Тип операции|Вид перевода`,
	"senderName":    `Отправитель`,
	"senderAccount": `Счет списания|Счёт списания`,
	"recipientName": `Получатель`,
	"recipientPhone": `Телефон получателя`,
	"recipientBank": `Банк получателя`,
	"recipientCard": `Карта получателя|Номер карты`,
	"operationId":   `Номер операции|ID операции`,
	"sbpCode":       `Код СБП|SBP`,
	"receiptNumber": `Номер квитанции|№ квитанции`,
}

var moneyPattern = regexp.MustCompile(`([\d\s]+[.,]\d{2})\s*(?:RUB|₽|руб)?`)
var digitsPattern = regexp.MustCompile(`\d+`)

// Parse extracts Fields from raw PDF text. On success err is nil. On
// failure it returns a diagnostic listing every required field that
// could not be found; the caller stores the Receipt unmatched rather
// than discarding it.
func Parse(rawText string) (Fields, error) {
	lines := splitNonEmptyLines(rawText)

	var f Fields
	var missing []string

	get := func(field string) (string, bool) {
		pattern, ok := labelPatterns[field]
		if !ok {
			return "", false
		}
		re := regexp.MustCompile(pattern)
		if isColumnar(lines) {
			return findColumnar(lines, re)
		}
		return findSequential(lines, re)
	}

	if v, ok := get("datetime"); ok {
		f.DateTime = parseDateTime(v)
	} else {
		missing = append(missing, "datetime")
	}
	if v, ok := get("total"); ok {
		f.Total = parseMoney(v)
	} else {
		missing = append(missing, "total")
	}
	if v, ok := get("amount"); ok {
		f.Amount = parseMoney(v)
	} else {
		missing = append(missing, "amount")
	}
	if v, ok := get("commission"); ok {
		if strings.Contains(strings.ToLower(v), "без комиссии") {
			f.Commission = 0
		} else {
			f.Commission = parseMoney(v)
		}
	} else {
		missing = append(missing, "commission")
	}
	if v, ok := get("status"); ok {
		f.Status = v
	} else {
		missing = append(missing, "status")
	}
	if v, ok := get("transferType"); ok {
		f.TransferType = v
	} else {
		missing = append(missing, "transferType")
	}
	if v, ok := get("senderName"); ok {
		f.SenderName = v
	} else {
		missing = append(missing, "senderName")
	}
	if v, ok := get("senderAccount"); ok {
		f.SenderAccount = maskDigits(v)
	} else {
		missing = append(missing, "senderAccount")
	}
	if v, ok := get("recipientName"); ok {
		f.RecipientName = v
	} else {
		missing = append(missing, "recipientName")
	}
	if v, ok := get("recipientPhone"); ok && strings.HasPrefix(strings.TrimSpace(v), "+7") {
		f.RecipientPhone = strings.TrimSpace(v)
	} else {
		missing = append(missing, "recipientPhone")
	}
	if v, ok := get("recipientBank"); ok {
		f.RecipientBank = v
	} else {
		missing = append(missing, "recipientBank")
	}
	if v, ok := get("recipientCard"); ok {
		f.RecipientCard = maskDigits(v)
	} else {
		missing = append(missing, "recipientCard")
	}
	if v, ok := get("operationId"); ok {
		f.OperationID = v
	} else {
		missing = append(missing, "operationId")
	}
	if v, ok := get("sbpCode"); ok {
		f.SBPCode = v
	} else {
		missing = append(missing, "sbpCode")
	}
	if v, ok := get("receiptNumber"); ok {
		f.ReceiptNumber = v
	} else {
		missing = append(missing, "receiptNumber")
	}

	if len(missing) > 0 {
		return f, fmt.Errorf("receipt: missing required fields: %s", strings.Join(missing, ", "))
	}
	return f, nil
}

func splitNonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// isColumnar reports whether the document opens with a run of at least
// three label-like lines, with values following afterward ("Label\nLabel\n
// ...\nValue\nValue\n..."), as opposed to "sequential" where each label
// line is immediately followed by its value line.
func isColumnar(lines []string) bool {
	labelLike := regexp.MustCompile(`^[А-Яа-яA-Za-z ./№]+:?$`)
	run := 0
	for _, l := range lines {
		if labelLike.MatchString(l) && !moneyPattern.MatchString(l) {
			run++
			if run >= 3 {
				return true
			}
		} else {
			break
		}
	}
	return false
}

// findSequential looks for a line matching re and returns the text on
// the same line after the label, or the next line if the label owns
// its own line.
func findSequential(lines []string, re *regexp.Regexp) (string, bool) {
	for i, l := range lines {
		if loc := re.FindStringIndex(l); loc != nil {
			rest := strings.TrimSpace(strings.TrimLeft(l[loc[1]:], ":"))
			if rest != "" {
				return rest, true
			}
			if i+1 < len(lines) {
				return lines[i+1], true
			}
		}
	}
	return "", false
}

// findColumnar locates the label's position in the label block, then
// reads the value at the same offset into the value block that follows.
func findColumnar(lines []string, re *regexp.Regexp) (string, bool) {
	// The label block and value block are equal length and in the same
	// order: find the label's index within the leading label run, then
	// read the value at the same offset past the end of the label run.
	labelRun := 0
	labelLike := regexp.MustCompile(`^[А-Яа-яA-Za-z ./№]+:?$`)
	for labelRun < len(lines) && labelLike.MatchString(lines[labelRun]) && !moneyPattern.MatchString(lines[labelRun]) {
		labelRun++
	}
	for i := 0; i < labelRun; i++ {
		if re.MatchString(lines[i]) {
			valueIdx := labelRun + i
			if valueIdx < len(lines) {
				return lines[valueIdx], true
			}
		}
	}
	return "", false
}

func parseMoney(raw string) int64 {
	m := moneyPattern.FindStringSubmatch(raw)
	var numeric string
	if len(m) > 1 {
		numeric = m[1]
	} else {
		numeric = raw
	}
	numeric = strings.ReplaceAll(numeric, " ", "")
	numeric = strings.ReplaceAll(numeric, ",", ".")
	f, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0
	}
	return int64(f*100 + 0.5)
}

func maskDigits(raw string) string {
	return digitsPattern.ReplaceAllStringFunc(raw, func(s string) string {
		if len(s) <= 4 {
			return s
		}
		return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
	})
}

var dateTimeLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2006-01-02 15:04:05",
}

func parseDateTime(raw string) int64 {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
