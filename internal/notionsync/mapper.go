package notionsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// Property names of the bills database.
const (
	PropMerchant     = "Merchant"
	PropBillID       = "Bill ID"
	PropAmount       = "Expected Amount"
	PropFrequency    = "Frequency"
	PropNextDue      = "Next Due"
	PropLastCharged  = "Last Charged"
	PropConfidence   = "Confidence"
	PropAutoDetected = "Auto Detected"
)

// BillID is the stable key of a tagged merchant on the board.
func BillID(m domain.TaggedMerchant) string {
	return fmt.Sprintf("%s:%d", m.UserID, m.ID)
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
	return notionapi.DateProperty{Date: &notionapi.DateObject{Start: &d}}
}

// BillToNotionProperties converts a tagged merchant to page properties.
func BillToNotionProperties(m domain.TaggedMerchant) notionapi.Properties {
	amount, _ := m.ExpectedAmount.Float64()
	props := notionapi.Properties{
		PropMerchant:     notionapi.TitleProperty{Title: richText(m.MerchantName)},
		PropBillID:       notionapi.RichTextProperty{RichText: richText(BillID(m))},
		PropAmount:       notionapi.NumberProperty{Number: amount},
		PropConfidence:   notionapi.NumberProperty{Number: float64(m.ConfidenceScore)},
		PropAutoDetected: notionapi.CheckboxProperty{Checkbox: m.AutoDetected},
	}
	if m.PredictionFrequency != "" {
		props[PropFrequency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(m.PredictionFrequency)},
		}
	}
	if !m.NextPredictedDate.IsZero() {
		props[PropNextDue] = dateProperty(m.NextPredictedDate)
	}
	if m.LastTransactionDate != nil {
		props[PropLastCharged] = dateProperty(*m.LastTransactionDate)
	}
	return props
}

// extractBillID reads the Bill ID property of a queried page.
func extractBillID(page notionapi.Page) string {
	prop, ok := page.Properties[PropBillID]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range rt.RichText {
		if t.PlainText != "" {
			b.WriteString(t.PlainText)
		} else if t.Text != nil {
			b.WriteString(t.Text.Content)
		}
	}
	return b.String()
}
