package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/infra/postgres"
	"github.com/dvloznov/budgenudge/internal/jobs"
	"github.com/dvloznov/budgenudge/internal/jobs/inmemory"
	"github.com/dvloznov/budgenudge/internal/sms"
)

const testUser = "user-1"

var testNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeStore struct {
	txs       []domain.Transaction
	tracks    []domain.PacingTrack
	merchants []domain.TaggedMerchant
	prefs     *domain.SMSPreferences
	items     map[string]*domain.Item
	profile   *domain.IncomeProfile

	lastFilter  postgres.TransactionFilter
	itemUpdates []string
}

func (f *fakeStore) ListTransactions(_ context.Context, _ string, filter postgres.TransactionFilter) ([]domain.Transaction, error) {
	f.lastFilter = filter
	return f.txs, nil
}

func (f *fakeStore) ListTransactionsSince(_ context.Context, _ string, since time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range f.txs {
		if !tx.Date.Before(since) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPacingTracksByKind(_ context.Context, _ string, kind domain.PacingKind) ([]domain.PacingTrack, error) {
	var out []domain.PacingTrack
	for _, t := range f.tracks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) AddPacingTrack(_ context.Context, t *domain.PacingTrack) error {
	t.ID = int64(len(f.tracks) + 1)
	f.tracks = append(f.tracks, *t)
	return nil
}

func (f *fakeStore) RemovePacingTrack(_ context.Context, _ string, kind domain.PacingKind, name string) error {
	for i, t := range f.tracks {
		if t.Kind == kind && t.Name == name && t.IsActive {
			f.tracks[i].IsActive = false
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) ListTaggedMerchants(context.Context, string) ([]domain.TaggedMerchant, error) {
	return f.merchants, nil
}

func (f *fakeStore) GetTaggedMerchant(_ context.Context, _ string, id int64) (*domain.TaggedMerchant, error) {
	for _, m := range f.merchants {
		if m.ID == id {
			m := m
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateTaggedMerchant(_ context.Context, m *domain.TaggedMerchant) error {
	for _, have := range f.merchants {
		if strings.EqualFold(have.MerchantName, m.MerchantName) {
			return domain.ErrAlreadyExists
		}
	}
	m.ID = int64(len(f.merchants) + 1)
	f.merchants = append(f.merchants, *m)
	return nil
}

func (f *fakeStore) UpdateTaggedMerchant(_ context.Context, m *domain.TaggedMerchant) error {
	for i := range f.merchants {
		if f.merchants[i].ID == m.ID {
			f.merchants[i] = *m
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) DeleteTaggedMerchant(_ context.Context, _ string, id int64) error {
	for i, m := range f.merchants {
		if m.ID == id {
			f.merchants = append(f.merchants[:i], f.merchants[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeStore) GetIncomeProfile(context.Context, string) (*domain.IncomeProfile, error) {
	if f.profile == nil {
		return nil, domain.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeStore) GetTaggingStatus(context.Context, string) (*domain.TaggingStatus, error) {
	return &domain.TaggingStatus{TotalTransactions: 10, TaggedTransactions: 4, UntaggedTransactions: 6, PercentTagged: 40}, nil
}

func (f *fakeStore) GetSMSPreferences(context.Context, string) (*domain.SMSPreferences, error) {
	if f.prefs == nil {
		return nil, domain.ErrNotFound
	}
	return f.prefs, nil
}

func (f *fakeStore) UpsertSMSPreferences(_ context.Context, p *domain.SMSPreferences) error {
	f.prefs = p
	return nil
}

func (f *fakeStore) GetItemByPlaidID(_ context.Context, id string) (*domain.Item, error) {
	if it, ok := f.items[id]; ok {
		return it, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) UpdateItemStatus(_ context.Context, id, status, errorCode string) error {
	if _, ok := f.items[id]; !ok {
		return domain.ErrNotFound
	}
	f.itemUpdates = append(f.itemUpdates, status+":"+errorCode)
	return nil
}

type fakePublisher struct {
	published []*jobs.Job
}

func (p *fakePublisher) Publish(_ context.Context, job *jobs.Job) error {
	job.ID = "job-1"
	job.Status = jobs.JobStatusPending
	p.published = append(p.published, job)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func request(method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(middleware.WithUserID(req.Context(), testUser))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func outflow(merchant string, date time.Time, amount string) domain.Transaction {
	return domain.Transaction{
		UserID:       testUser,
		Date:         date,
		Name:         merchant,
		MerchantName: merchant,
		Amount:       decimal.RequireFromString(amount),
		Category:     "FOOD_AND_DRINK",
	}
}

func TestRequiresUser(t *testing.T) {
	h := NewTransactionsHandler(&fakeStore{}, zerolog.Nop())
	rec := httptest.NewRecorder()
	h.ListTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListTransactions(t *testing.T) {
	store := &fakeStore{}
	h := NewTransactionsHandler(store, zerolog.Nop())
	h.now = fixedNow

	t.Run("empty result is an array", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ListTransactions(rec, request(http.MethodGet, "/api/transactions", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
		require.NotNil(t, store.lastFilter.Start)
		assert.Equal(t, testNow.AddDate(-1, 0, 0), *store.lastFilter.Start)
	})

	t.Run("explicit range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ListTransactions(rec, request(http.MethodGet, "/api/transactions?start_date=2026-10-01&end_date=2026-10-15", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, day(10, 1), *store.lastFilter.Start)
		assert.Equal(t, day(10, 15), *store.lastFilter.End)
	})

	for _, target := range []string{
		"/api/transactions?start_date=10/01/2026",
		"/api/transactions?start_date=2026-10-10&end_date=2026-10-01",
		"/api/transactions?limit=-1",
	} {
		rec := httptest.NewRecorder()
		h.ListTransactions(rec, request(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestPacingHandler(t *testing.T) {
	store := &fakeStore{
		txs: []domain.Transaction{
			outflow("Starbucks", day(9, 5), "60"),
			outflow("Starbucks", day(10, 5), "30"),
		},
	}
	h := NewPacingHandler(store, domain.PacingMerchant, zerolog.Nop())
	h.now = fixedNow

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "/api/merchant-pacing-tracking", map[string]string{
		"action": "add", "merchant_name": " Starbucks ",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.tracks, 1)
	assert.Equal(t, "Starbucks", store.tracks[0].Name)
	assert.False(t, store.tracks[0].AutoSelected)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "/api/merchant-pacing-tracking", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["count"])
	reports := body["pacing"].([]interface{})
	require.Len(t, reports, 1)
	assert.Equal(t, "Starbucks", reports[0].(map[string]interface{})["name"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "/api/merchant-pacing-tracking", map[string]string{
		"action": "remove", "merchant_name": "Starbucks",
	}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, store.tracks[0].IsActive)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "/api/merchant-pacing-tracking", map[string]string{
		"action": "remove", "merchant_name": "Starbucks",
	}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "/api/merchant-pacing-tracking", map[string]string{"action": "add"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "/api/merchant-pacing-tracking", map[string]string{"action": "explode"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodDelete, "/api/merchant-pacing-tracking", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPacingHandler_CategoryUsesCategoryField(t *testing.T) {
	store := &fakeStore{}
	h := NewPacingHandler(store, domain.PacingCategory, zerolog.Nop())
	h.now = fixedNow

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "/api/category-pacing-tracking", map[string]string{
		"action": "add", "merchant_name": "ignored", "category": "GROCERIES",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.tracks, 1)
	assert.Equal(t, domain.PacingCategory, store.tracks[0].Kind)
	assert.Equal(t, "GROCERIES", store.tracks[0].Name)
}

func TestPacingHandler_AutoSelectRespectsLimit(t *testing.T) {
	store := &fakeStore{tracks: []domain.PacingTrack{
		{Kind: domain.PacingMerchant, Name: "A", IsActive: true},
		{Kind: domain.PacingMerchant, Name: "B", IsActive: true},
		{Kind: domain.PacingMerchant, Name: "C", IsActive: true},
	}}
	for _, d := range []int{1, 8, 15} {
		store.txs = append(store.txs, outflow("Target", day(9, d), "80"))
	}
	h := NewPacingHandler(store, domain.PacingMerchant, zerolog.Nop())
	h.now = fixedNow

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "/api/merchant-pacing-tracking", map[string]string{"action": "auto_select"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["count"])
	assert.Len(t, store.tracks, 3)
}

func TestMerchantsHandler_Create(t *testing.T) {
	store := &fakeStore{txs: []domain.Transaction{
		outflow("Netflix", day(9, 5), "15.49"),
		outflow("Netflix", day(10, 5), "15.49"),
	}}
	h := NewMerchantsHandler(store, zerolog.Nop())
	h.now = fixedNow

	t.Run("predicts from latest charge", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Collection(rec, request(http.MethodPost, "/api/tagged-merchants", map[string]interface{}{
			"merchant_name": "Netflix", "expected_amount": "15.49", "prediction_frequency": "Monthly",
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.Len(t, store.merchants, 1)
		m := store.merchants[0]
		assert.Equal(t, day(11, 5), m.NextPredictedDate)
		require.NotNil(t, m.LastTransactionDate)
		assert.Equal(t, day(10, 5), *m.LastTransactionDate)
		assert.True(t, m.IsActive)
		assert.False(t, m.AutoDetected)
	})

	t.Run("duplicate is a conflict", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Collection(rec, request(http.MethodPost, "/api/tagged-merchants", map[string]interface{}{
			"merchant_name": "netflix", "expected_amount": "15.49", "prediction_frequency": "monthly",
			"next_predicted_date": "2026-11-05",
		}))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"expected_amount": "10", "prediction_frequency": "monthly"}},
		{"zero amount", map[string]interface{}{"merchant_name": "Gym", "expected_amount": "0", "prediction_frequency": "monthly"}},
		{"bad frequency", map[string]interface{}{"merchant_name": "Gym", "expected_amount": "10", "prediction_frequency": "daily"}},
		{"no history and no date", map[string]interface{}{"merchant_name": "Gym", "expected_amount": "10", "prediction_frequency": "monthly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Collection(rec, request(http.MethodPost, "/api/tagged-merchants", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMerchantsHandler_UpdateAndDelete(t *testing.T) {
	store := &fakeStore{merchants: []domain.TaggedMerchant{{
		ID: 7, UserID: testUser, MerchantName: "Hulu", ExpectedAmount: decimal.NewFromInt(18),
		PredictionFrequency: domain.FrequencyMonthly, NextPredictedDate: day(10, 20), AutoDetected: true,
	}}}
	h := NewMerchantsHandler(store, zerolog.Nop())
	h.now = fixedNow

	rec := httptest.NewRecorder()
	h.Item(rec, request(http.MethodPut, "/api/tagged-merchants/7", map[string]interface{}{"is_active": true}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, store.merchants[0].IsActive)

	rec = httptest.NewRecorder()
	h.Item(rec, request(http.MethodDelete, "/api/tagged-merchants/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Item(rec, request(http.MethodDelete, "/api/tagged-merchants/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.merchants)

	rec = httptest.NewRecorder()
	h.Item(rec, request(http.MethodDelete, "/api/tagged-merchants/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMerchantsHandler_RecurringBills(t *testing.T) {
	store := &fakeStore{merchants: []domain.TaggedMerchant{
		{ID: 1, MerchantName: "Rent", ExpectedAmount: decimal.NewFromInt(1500), NextPredictedDate: day(10, 20), IsActive: true},
		{ID: 2, MerchantName: "Gym", ExpectedAmount: decimal.NewFromInt(40), NextPredictedDate: day(10, 17), IsActive: true},
		{ID: 3, MerchantName: "Later", ExpectedAmount: decimal.NewFromInt(9), NextPredictedDate: day(12, 1), IsActive: true},
		{ID: 4, MerchantName: "Inactive", ExpectedAmount: decimal.NewFromInt(9), NextPredictedDate: day(10, 18)},
	}}
	h := NewMerchantsHandler(store, zerolog.Nop())
	h.now = fixedNow

	rec := httptest.NewRecorder()
	h.RecurringBills(rec, request(http.MethodGet, "/api/recurring-bills?days=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, "1540", body["total"])
	bills := body["bills"].([]interface{})
	assert.Equal(t, "Gym", bills[0].(map[string]interface{})["merchant_name"])

	rec = httptest.NewRecorder()
	h.RecurringBills(rec, request(http.MethodGet, "/api/recurring-bills?days=1000", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestADFHandler(t *testing.T) {
	store := &fakeStore{txs: []domain.Transaction{outflow("Chipotle", day(10, 3), "12.50")}}
	h := NewADFHandler(store, zerolog.Nop())
	h.now = fixedNow

	rec := httptest.NewRecorder()
	h.GetADF(rec, request(http.MethodGet, "/api/adf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "12.5", body["discretionary_spent"])
}

func TestTaggingHandler(t *testing.T) {
	pub := &fakePublisher{}
	h := NewTaggingHandler(&fakeStore{}, pub, true, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Status(rec, request(http.MethodGet, "/api/ai-tagging-status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 40, decode(t, rec)["percent_tagged"])

	rec = httptest.NewRecorder()
	h.Trigger(rec, request(http.MethodPost, "/api/ai-tagging", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.published, 1)
	assert.Equal(t, jobs.JobTypeProcessUser, pub.published[0].Type)
	assert.Equal(t, testUser, pub.published[0].UserID)
}

func TestTaggingHandler_TriggerWhenDisabled(t *testing.T) {
	pub := &fakePublisher{}
	h := NewTaggingHandler(&fakeStore{}, pub, false, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Trigger(rec, request(http.MethodPost, "/api/ai-tagging", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "AI tagging is not enabled", decode(t, rec)["error"])
	assert.Empty(t, pub.published)
}

func TestSMSHandler_Preferences(t *testing.T) {
	store := &fakeStore{}
	h := NewSMSHandler(store, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Preferences(rec, request(http.MethodGet, "/api/sms-preferences", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, DefaultSendHour, body["send_hour"])
	assert.Equal(t, domain.DefaultTimezone, body["timezone"])
	assert.Equal(t, false, body["enabled"])

	rec = httptest.NewRecorder()
	h.Preferences(rec, request(http.MethodPut, "/api/sms-preferences", map[string]interface{}{
		"phone_number": "(555) 123-4567", "enabled": true, "send_hour": 0, "timezone": "America/Chicago",
		"templates": []string{"bills", "adf"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, store.prefs)
	assert.Equal(t, "+15551234567", store.prefs.PhoneNumber)
	assert.Equal(t, 0, store.prefs.SendHour)
	assert.Equal(t, []domain.TemplateType{domain.TemplateBills, domain.TemplateADF}, store.prefs.Templates)

	bad := []map[string]interface{}{
		{"phone_number": "123", "enabled": true},
		{"enabled": true},
		{"phone_number": "5551234567", "send_hour": 24},
		{"phone_number": "5551234567", "timezone": "Mars/Olympus"},
		{"phone_number": "5551234567", "templates": []string{"manual"}},
		{"phone_number": "5551234567", "templates": []string{"poems"}},
	}
	for _, b := range bad {
		rec := httptest.NewRecorder()
		h.Preferences(rec, request(http.MethodPut, "/api/sms-preferences", b))
		assert.Equal(t, http.StatusBadRequest, rec.Code, b)
	}
}

type fakeSender struct {
	err  error
	sent []string
}

func (s *fakeSender) SendManual(_ context.Context, userID string, template domain.TemplateType, body string, force bool) (*domain.SMSLogEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, body)
	return &domain.SMSLogEntry{UserID: userID, TemplateType: template, Body: body, Status: domain.SMSStatusDryRun}, nil
}

func TestSMSHandler_ManualSMS(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   map[string]interface{}
		status int
	}{
		{"sent", nil, map[string]interface{}{"message": "hello"}, http.StatusOK},
		{"missing message", nil, map[string]interface{}{"message": "  "}, http.StatusBadRequest},
		{"unknown template", nil, map[string]interface{}{"template": "poem", "message": "x"}, http.StatusBadRequest},
		{"duplicate", sms.ErrDuplicate, map[string]interface{}{"message": "x"}, http.StatusConflict},
		{"opted out", sms.ErrOptedOut, map[string]interface{}{"message": "x"}, http.StatusConflict},
		{"no preferences", domain.ErrNotFound, map[string]interface{}{"message": "x"}, http.StatusNotFound},
		{"send failure", assert.AnError, map[string]interface{}{"message": "x"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{err: tt.err}
			h := NewSMSHandler(&fakeStore{}, sender, zerolog.Nop())
			rec := httptest.NewRecorder()
			h.ManualSMS(rec, request(http.MethodPost, "/api/manual-sms", tt.body))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

type fakeInbound struct {
	from, body string
}

func (f *fakeInbound) HandleInbound(_ context.Context, from, body string) (*sms.InboundResult, error) {
	f.from, f.body = from, body
	if from == "" {
		return nil, sms.ErrInvalidPhone
	}
	return &sms.InboundResult{Phone: from, Action: sms.ActionOptOut}, nil
}

func TestWebhooksHandler_Plaid(t *testing.T) {
	store := &fakeStore{items: map[string]*domain.Item{"item-1": {PlaidItemID: "item-1", UserID: testUser}}}
	pub := &fakePublisher{}
	h := NewWebhooksHandler(store, pub, &fakeInbound{}, nil, zerolog.Nop())

	tests := []struct {
		name   string
		body   string
		status int
		action string
	}{
		{"sync update queues processing", `{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`, http.StatusOK, WebhookQueued},
		{"unknown item is acknowledged", `{"webhook_type":"TRANSACTIONS","webhook_code":"DEFAULT_UPDATE","item_id":"nope"}`, http.StatusOK, WebhookIgnored},
		{"login required", `{"webhook_type":"ITEM","webhook_code":"ERROR","item_id":"item-1","error":{"error_code":"ITEM_LOGIN_REQUIRED"}}`, http.StatusOK, WebhookUpdated},
		{"pending expiration", `{"webhook_type":"ITEM","webhook_code":"PENDING_EXPIRATION","item_id":"item-1"}`, http.StatusOK, WebhookUpdated},
		{"other code ignored", `{"webhook_type":"AUTH","webhook_code":"AUTOMATICALLY_VERIFIED","item_id":"item-1"}`, http.StatusOK, WebhookIgnored},
		{"missing item id", `{"webhook_type":"TRANSACTIONS"}`, http.StatusBadRequest, ""},
		{"not json", `nope`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Plaid(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/plaid", strings.NewReader(tt.body)))
			require.Equal(t, tt.status, rec.Code)
			if tt.action != "" {
				assert.Equal(t, tt.action, decode(t, rec)["action"])
			}
		})
	}

	require.Len(t, pub.published, 1)
	assert.Equal(t, jobs.JobTypeProcessUser, pub.published[0].Type)
	assert.Equal(t, testUser, pub.published[0].UserID)
	assert.Equal(t, "item-1", pub.published[0].Param("item_id"))
	assert.Equal(t, []string{"login_required:ITEM_LOGIN_REQUIRED", "pending_expiration:"}, store.itemUpdates)
}

func TestWebhooksHandler_SlickText(t *testing.T) {
	inbound := &fakeInbound{}
	h := NewWebhooksHandler(&fakeStore{}, &fakePublisher{}, inbound, nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.SlickText(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/slicktext",
		strings.NewReader(`{"phone_number":"+15551234567","message":"STOP"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+15551234567", inbound.from)
	assert.Equal(t, "STOP", inbound.body)
	assert.Equal(t, sms.ActionOptOut, decode(t, rec)["action"])

	rec = httptest.NewRecorder()
	h.SlickText(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/slicktext", strings.NewReader(`{"body":"STOP"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.SlickText(rec, httptest.NewRequest(http.MethodGet, "/api/webhooks/slicktext", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestJobsHandler(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveJob(ctx, &jobs.Job{ID: "mine", Type: jobs.JobTypeProcessUser, UserID: testUser, Status: jobs.JobStatusCompleted, CreatedAt: testNow}))
	require.NoError(t, store.SaveJob(ctx, &jobs.Job{ID: "theirs", Type: jobs.JobTypeProcessUser, UserID: "user-2", Status: jobs.JobStatusPending, CreatedAt: testNow}))
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListJobs(rec, request(http.MethodGet, "/api/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = httptest.NewRecorder()
	h.GetJob(rec, request(http.MethodGet, "/api/jobs/mine", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.GetJob(rec, request(http.MethodGet, "/api/jobs/theirs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ListJobs(rec, request(http.MethodGet, "/api/jobs?type=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
