package tagging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budgenudge/internal/domain"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"chatter", "Here you go:\n[{\"a\":1}]\nHope this helps", `[{"a":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.in))
		})
	}
}

func TestParseTags(t *testing.T) {
	raw := "```json\n" + `[
		{"merchant": "SQ *BLUE BOTTLE", "normalized_name": "Blue Bottle Coffee", "category": "coffee", "is_recurring": false},
		{"merchant": "NETFLIX.COM", "normalized_name": "Netflix", "category": "Streaming", "is_recurring": true},
		{"merchant": "  ", "normalized_name": "x", "category": "Other"},
		{"merchant": "ACME", "normalized_name": "", "category": "Shopping"}
	]` + "\n```"

	tags, err := parseTags(raw)
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "Coffee", tags[0].Category)
	assert.Equal(t, OtherCategory, tags[1].Category)
	assert.True(t, tags[1].IsRecurring)
	assert.Equal(t, "ACME", tags[2].NormalizedName)

	_, err = parseTags("not json")
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt([]string{"SQ *BLUE BOTTLE", "NETFLIX.COM"})
	assert.Contains(t, p, "- SQ *BLUE BOTTLE\n")
	assert.Contains(t, p, "- NETFLIX.COM\n")
	assert.Contains(t, p, "Personal Care")
	assert.True(t, strings.HasSuffix(p, "\"]\".\n"))
}

type fakeTagger struct {
	calls [][]string
	err   error
}

func (f *fakeTagger) Tag(_ context.Context, merchants []string) ([]MerchantTag, error) {
	f.calls = append(f.calls, append([]string(nil), merchants...))
	if f.err != nil {
		return nil, f.err
	}
	var out []MerchantTag
	for _, m := range merchants {
		out = append(out, MerchantTag{Merchant: m, NormalizedName: "Clean " + m, Category: "Shopping"})
	}
	return out, nil
}

type fakeStore struct {
	untagged []domain.Transaction
	updated  []domain.Transaction
	finished *domain.TaggingRun
}

func (f *fakeStore) ListUntaggedTransactions(_ context.Context, _ string, limit int) ([]domain.Transaction, error) {
	if len(f.untagged) > limit {
		return f.untagged[:limit], nil
	}
	return f.untagged, nil
}

func (f *fakeStore) UpdateTransactionTags(_ context.Context, txs []domain.Transaction) (int, error) {
	f.updated = append(f.updated, txs...)
	return len(txs), nil
}

func (f *fakeStore) CreateTaggingRun(_ context.Context, userID string) (*domain.TaggingRun, error) {
	return &domain.TaggingRun{ID: "run-1", UserID: userID}, nil
}

func (f *fakeStore) FinishTaggingRun(_ context.Context, run *domain.TaggingRun) error {
	f.finished = run
	return nil
}

func TestService_TagDeduplicatesAndBatches(t *testing.T) {
	tagger := &fakeTagger{}
	svc := NewService(&fakeStore{}, tagger, zerolog.Nop(), nil, 2)

	txs := []*domain.Transaction{
		{ID: "1", MerchantName: "Target"},
		{ID: "2", MerchantName: "TARGET"},
		{ID: "3", Name: "SQ *BLUE BOTTLE"},
		{ID: "4", MerchantName: "Costco"},
		{ID: "5", MerchantName: "Rent", AIMerchantName: "Landlord", AICategoryTag: "Rent"},
		{ID: "6", MerchantName: "Kroger", AIMerchantName: "Kroger Grocery"},
	}

	changed, err := svc.Tag(context.Background(), txs)
	require.NoError(t, err)
	assert.Len(t, changed, 5)
	assert.Equal(t, [][]string{{"Target", "SQ *BLUE BOTTLE"}, {"Costco", "Kroger"}}, tagger.calls)

	assert.Equal(t, "Clean Target", txs[1].AIMerchantName)
	assert.Equal(t, "Shopping", txs[2].AICategoryTag)
	assert.Equal(t, "Landlord", txs[4].AIMerchantName)
	assert.Equal(t, "Kroger Grocery", txs[5].AIMerchantName)
	assert.Equal(t, "Shopping", txs[5].AICategoryTag)
}

func TestService_TagUntagged(t *testing.T) {
	store := &fakeStore{untagged: []domain.Transaction{
		{ID: "1", MerchantName: "Target"},
		{ID: "2", MerchantName: "Chipotle"},
	}}
	svc := NewService(store, &fakeTagger{}, zerolog.Nop(), nil, 0)

	run, err := svc.TagUntagged(context.Background(), "user-1", 500)
	require.NoError(t, err)
	assert.Equal(t, 2, run.TaggedCount)
	require.Len(t, store.updated, 2)
	assert.Equal(t, "Clean Chipotle", store.updated[1].AIMerchantName)
	require.NotNil(t, store.finished)
	assert.NotNil(t, store.finished.FinishedAt)
	assert.Empty(t, store.finished.Error)
}

func TestService_TagUntaggedRecordsFailure(t *testing.T) {
	store := &fakeStore{untagged: []domain.Transaction{{ID: "1", MerchantName: "Target"}}}
	svc := NewService(store, &fakeTagger{err: errors.New("quota exceeded")}, zerolog.Nop(), nil, 0)

	_, err := svc.TagUntagged(context.Background(), "user-1", 500)
	require.Error(t, err)
	require.NotNil(t, store.finished)
	assert.Contains(t, store.finished.Error, "quota exceeded")
	assert.Empty(t, store.updated)
}

func TestService_TagTransactionsRecordsRun(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeTagger{}, zerolog.Nop(), nil, 0)

	txs := []*domain.Transaction{
		{ID: "1", MerchantName: "Target"},
		{ID: "2", MerchantName: "Rent", AIMerchantName: "Landlord", AICategoryTag: "Rent"},
	}
	run, err := svc.TagTransactions(context.Background(), "user-1", txs)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 1, run.TaggedCount)
	require.NotNil(t, store.finished)
	assert.Equal(t, "user-1", store.finished.UserID)
	require.Len(t, store.updated, 1)
	assert.Equal(t, "Clean Target", txs[0].AIMerchantName)

	store.finished = nil
	run, err = svc.TagTransactions(context.Background(), "user-1", txs)
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.Nil(t, store.finished)
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "Personal Care", NormalizeCategory(" personal care "))
	assert.Equal(t, OtherCategory, NormalizeCategory("Crypto"))
	assert.Equal(t, OtherCategory, NormalizeCategory(""))
}
