package processing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/pacing"
	"github.com/dvloznov/budgenudge/internal/recurring"
	"github.com/dvloznov/budgenudge/internal/rules"
)

const (
	// LookbackDays is how much history a run loads.
	LookbackDays = 180

	// MinDetectConfidence is the lowest confidence stored for a detected bill.
	MinDetectConfidence = 70
)

// Store is the persistence the pipeline needs.
type Store interface {
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	UpdateTransactionTags(ctx context.Context, txs []domain.Transaction) (int, error)
	ListRules(ctx context.Context, userID string) ([]domain.Rule, error)
	ListTaggedMerchants(ctx context.Context, userID string) ([]domain.TaggedMerchant, error)
	UpdateTaggedMerchant(ctx context.Context, m *domain.TaggedMerchant) error
	InsertDetectedMerchants(ctx context.Context, merchants []domain.TaggedMerchant) (int, error)
	ListPacingTracks(ctx context.Context, userID string) ([]domain.PacingTrack, error)
	AddPacingTrack(ctx context.Context, t *domain.PacingTrack) error
}

// MerchantTagger fills AI tags in place, saves them and records a tagging
// run. The run is nil when nothing needed tagging.
type MerchantTagger interface {
	TagTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (*domain.TaggingRun, error)
}

func values(txs []*domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = *tx
	}
	return out
}

// Step 1: LoadTransactionsStep loads recent transactions.
type LoadTransactionsStep struct {
	Store Store
}

func (s *LoadTransactionsStep) Execute(ctx context.Context, state *State) error {
	since := recurring.DayOf(state.Now).AddDate(0, 0, -LookbackDays)
	rows, err := s.Store.ListTransactionsSince(ctx, state.UserID, since)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	state.Transactions = make([]*domain.Transaction, len(rows))
	for i := range rows {
		state.Transactions[i] = &rows[i]
	}
	state.Result.Transactions = len(rows)
	return nil
}

// Step 2: ApplyRulesStep rewrites merchants with the user's rules and saves changed rows.
type ApplyRulesStep struct {
	Store Store
}

func (s *ApplyRulesStep) Execute(ctx context.Context, state *State) error {
	ruleRows, err := s.Store.ListRules(ctx, state.UserID)
	if err != nil {
		return fmt.Errorf("apply rules: %w", err)
	}
	engine, err := rules.Compile(ruleRows)
	if err != nil {
		return fmt.Errorf("apply rules: %w", err)
	}
	if engine.Len() == 0 {
		return nil
	}

	changed := engine.ApplyAll(state.Transactions)
	if len(changed) == 0 {
		return nil
	}
	if _, err := s.Store.UpdateTransactionTags(ctx, values(changed)); err != nil {
		return fmt.Errorf("apply rules: save: %w", err)
	}
	state.Result.RulesApplied = len(changed)
	return nil
}

// Step 3: TagMerchantsStep runs the AI tagger. A nil Tagger skips the step.
type TagMerchantsStep struct {
	Tagger MerchantTagger
	Log    zerolog.Logger
}

func (s *TagMerchantsStep) Execute(ctx context.Context, state *State) error {
	if s.Tagger == nil {
		return nil
	}
	run, err := s.Tagger.TagTransactions(ctx, state.UserID, state.Transactions)
	if run != nil {
		state.Result.Tagged = run.TaggedCount
	}
	if err != nil {
		// Tagging is best effort; the remaining steps work on untagged names.
		s.Log.Warn().Err(err).Str("user_id", state.UserID).Msg("AI tagging failed, continuing")
	}
	return nil
}

// Step 4: UpdateRecurringStep refreshes predictions and stores newly detected bills.
type UpdateRecurringStep struct {
	Store         Store
	MinConfidence int
}

func (s *UpdateRecurringStep) Execute(ctx context.Context, state *State) error {
	merchants, err := s.Store.ListTaggedMerchants(ctx, state.UserID)
	if err != nil {
		return fmt.Errorf("update recurring: %w", err)
	}

	latest := make(map[string]time.Time)
	plain := make([]domain.Transaction, 0, len(state.Transactions))
	for _, tx := range state.Transactions {
		plain = append(plain, *tx)
		if !tx.IsOutflow() || tx.Pending {
			continue
		}
		key := strings.ToLower(tx.Merchant())
		if tx.Date.After(latest[key]) {
			latest[key] = tx.Date
		}
	}

	known := make(map[string]bool, len(merchants))
	for i := range merchants {
		m := &merchants[i]
		known[strings.ToLower(m.MerchantName)] = true
		if !m.IsActive {
			continue
		}

		var lastTx *time.Time
		if d, ok := latest[strings.ToLower(m.MerchantName)]; ok {
			lastTx = &d
		}
		changed, err := recurring.Refresh(m, lastTx, state.Now)
		if err != nil {
			return fmt.Errorf("update recurring: %w", err)
		}
		if !changed {
			continue
		}
		if err := s.Store.UpdateTaggedMerchant(ctx, m); err != nil {
			return fmt.Errorf("update recurring: %w", err)
		}
		state.Result.MerchantsRefreshed++
	}

	minConf := s.MinConfidence
	if minConf <= 0 {
		minConf = MinDetectConfidence
	}
	var detected []domain.TaggedMerchant
	for _, c := range recurring.Detect(plain, state.Now, recurring.DefaultDetectOptions()) {
		if c.Confidence < minConf || known[strings.ToLower(c.MerchantName)] {
			continue
		}
		detected = append(detected, c.ToTaggedMerchant(state.UserID))
	}
	if len(detected) > 0 {
		n, err := s.Store.InsertDetectedMerchants(ctx, detected)
		if err != nil {
			return fmt.Errorf("update recurring: insert detected: %w", err)
		}
		state.Result.MerchantsDetected = n
		merchants = append(merchants, detected...)
	}
	state.Merchants = merchants
	return nil
}

// Step 5: AutoSelectPacingStep adds merchant and category tracks when the user has room.
type AutoSelectPacingStep struct {
	Store Store
}

func (s *AutoSelectPacingStep) Execute(ctx context.Context, state *State) error {
	tracks, err := s.Store.ListPacingTracks(ctx, state.UserID)
	if err != nil {
		return fmt.Errorf("auto-select pacing: %w", err)
	}

	txs := make([]domain.Transaction, len(state.Transactions))
	for i, tx := range state.Transactions {
		txs[i] = *tx
	}

	for _, kind := range []domain.PacingKind{domain.PacingMerchant, domain.PacingCategory} {
		candidates := pacing.AutoSelect(txs, tracks, pacing.DefaultAutoSelectOptions(kind, state.Now))
		for _, c := range candidates {
			t := c.ToTrack(state.UserID, kind)
			if err := s.Store.AddPacingTrack(ctx, &t); err != nil {
				return fmt.Errorf("auto-select pacing: add %s %q: %w", kind, c.Name, err)
			}
			tracks = append(tracks, t)
			state.Result.TracksSelected++
		}
	}
	state.Tracks = tracks
	return nil
}
