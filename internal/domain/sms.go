package domain

import "time"

// TemplateType identifies the kind of SMS being sent. Deduplication is keyed
// on (phone, template, day).
type TemplateType string

const (
	TemplateBills         TemplateType = "bills"
	TemplatePacing        TemplateType = "pacing"
	TemplateDailySummary  TemplateType = "daily_summary"
	TemplateWeeklySummary TemplateType = "weekly_summary"
	TemplateADF           TemplateType = "adf"
	TemplateManual        TemplateType = "manual"
)

// AllTemplates lists the template types a user can subscribe to.
var AllTemplates = []TemplateType{
	TemplateBills,
	TemplatePacing,
	TemplateDailySummary,
	TemplateWeeklySummary,
	TemplateADF,
}

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	switch t {
	case TemplateBills, TemplatePacing, TemplateDailySummary, TemplateWeeklySummary, TemplateADF, TemplateManual:
		return true
	}
	return false
}

// SMSPreferences is a row of user_sms_preferences.
type SMSPreferences struct {
	UserID      string         `json:"user_id"`
	PhoneNumber string         `json:"phone_number"`
	Enabled     bool           `json:"enabled"`
	SendHour    int            `json:"send_hour"`
	Timezone    string         `json:"timezone"`
	Templates   []TemplateType `json:"templates"`
	OptedOut    bool           `json:"opted_out"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Wants reports whether the user subscribed to template t.
func (p SMSPreferences) Wants(t TemplateType) bool {
	for _, have := range p.Templates {
		if have == t {
			return true
		}
	}
	return false
}

// SMS send statuses.
const (
	SMSStatusSent   = "sent"
	SMSStatusFailed = "failed"
	SMSStatusDryRun = "dry_run"
)

// SMSLogEntry is a row of sms_send_log. SendDate is YYYY-MM-DD in the
// recipient's timezone.
type SMSLogEntry struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	PhoneNumber  string       `json:"phone_number"`
	TemplateType TemplateType `json:"template_type"`
	SendDate     string       `json:"send_date"`
	MessageID    string       `json:"message_id,omitempty"`
	Status       string       `json:"status"`
	Body         string       `json:"body"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TaggingRun records one pass of the AI merchant tagger.
type TaggingRun struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	TaggedCount int        `json:"tagged_count"`
	Error       string     `json:"error,omitempty"`
}

// TaggingStatus is the payload of GET /api/ai-tagging-status.
type TaggingStatus struct {
	TotalTransactions    int         `json:"total_transactions"`
	TaggedTransactions   int         `json:"tagged_transactions"`
	UntaggedTransactions int         `json:"untagged_transactions"`
	PercentTagged        int         `json:"percent_tagged"`
	LastRun              *TaggingRun `json:"last_run,omitempty"`
}
