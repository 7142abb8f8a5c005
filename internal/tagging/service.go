// Package tagging normalizes merchant names and assigns spending categories
// with a language model.
package tagging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/metrics"
)

// DefaultBatchSize is the number of distinct merchants sent per model call.
const DefaultBatchSize = 100

// Store is the persistence the service needs.
type Store interface {
	ListUntaggedTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	UpdateTransactionTags(ctx context.Context, txs []domain.Transaction) (int, error)
	CreateTaggingRun(ctx context.Context, userID string) (*domain.TaggingRun, error)
	FinishTaggingRun(ctx context.Context, run *domain.TaggingRun) error
}

// Service tags transactions in merchant batches.
type Service struct {
	store     Store
	tagger    Tagger
	log       zerolog.Logger
	metrics   *metrics.Metrics
	batchSize int
}

// NewService creates a Service. A non-positive batchSize uses DefaultBatchSize.
func NewService(store Store, tagger Tagger, log zerolog.Logger, m *metrics.Metrics, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{store: store, tagger: tagger, log: log, metrics: m, batchSize: batchSize}
}

// rawMerchant is the string sent to the model: Plaid's merchant name or the
// raw description.
func rawMerchant(tx *domain.Transaction) string {
	if s := strings.TrimSpace(tx.MerchantName); s != "" {
		return s
	}
	return strings.TrimSpace(tx.Name)
}

// Tag fills AIMerchantName and AICategoryTag on untagged transactions in
// place and returns the ones it changed. Each distinct merchant is sent to
// the model once. A failing batch aborts with the changes made so far.
func (s *Service) Tag(ctx context.Context, txs []*domain.Transaction) ([]*domain.Transaction, error) {
	byMerchant := make(map[string][]*domain.Transaction)
	var merchants []string
	for _, tx := range txs {
		if tx.IsTagged() {
			continue
		}
		m := rawMerchant(tx)
		if m == "" {
			continue
		}
		key := strings.ToLower(m)
		if _, seen := byMerchant[key]; !seen {
			merchants = append(merchants, m)
		}
		byMerchant[key] = append(byMerchant[key], tx)
	}

	var changed []*domain.Transaction
	for start := 0; start < len(merchants); start += s.batchSize {
		end := start + s.batchSize
		if end > len(merchants) {
			end = len(merchants)
		}

		tags, err := s.tagger.Tag(ctx, merchants[start:end])
		if err != nil {
			return changed, fmt.Errorf("Tag: batch %d-%d: %w", start, end, err)
		}
		s.metrics.MerchantsTagged(len(tags))

		for _, tag := range tags {
			for _, tx := range byMerchant[strings.ToLower(tag.Merchant)] {
				if tx.AIMerchantName == "" {
					tx.AIMerchantName = tag.NormalizedName
				}
				if tx.AICategoryTag == "" {
					tx.AICategoryTag = tag.Category
				}
				changed = append(changed, tx)
			}
		}
		s.log.Debug().Int("merchants", end-start).Int("tags", len(tags)).Msg("Tagged merchant batch")
	}
	return changed, nil
}

// TagTransactions tags the untagged transactions among txs in place, saves
// them and records a tagging run. When nothing needs tagging no run is
// recorded and the returned run is nil.
func (s *Service) TagTransactions(ctx context.Context, userID string, txs []*domain.Transaction) (*domain.TaggingRun, error) {
	pending := 0
	for _, tx := range txs {
		if !tx.IsTagged() && rawMerchant(tx) != "" {
			pending++
		}
	}
	if pending == 0 {
		return nil, nil
	}
	return s.recordRun(ctx, userID, func(run *domain.TaggingRun) error {
		return s.tagAndSave(ctx, txs, run)
	})
}

// TagUntagged loads up to limit untagged transactions, tags them, saves
// the result and records a tagging run.
func (s *Service) TagUntagged(ctx context.Context, userID string, limit int) (*domain.TaggingRun, error) {
	return s.recordRun(ctx, userID, func(run *domain.TaggingRun) error {
		rows, err := s.store.ListUntaggedTransactions(ctx, userID, limit)
		if err != nil {
			return err
		}
		txs := make([]*domain.Transaction, len(rows))
		for i := range rows {
			txs[i] = &rows[i]
		}
		return s.tagAndSave(ctx, txs, run)
	})
}

// recordRun wraps fn in a tagging run. The run is finished with fn's error
// message even when fn fails.
func (s *Service) recordRun(ctx context.Context, userID string, fn func(run *domain.TaggingRun) error) (*domain.TaggingRun, error) {
	log := s.log.With().Str("user_id", userID).Logger()

	run, err := s.store.CreateTaggingRun(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recordRun: create: %w", err)
	}

	tagErr := fn(run)
	if tagErr != nil {
		run.Error = tagErr.Error()
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	if err := s.store.FinishTaggingRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record tagging run")
	}
	if tagErr != nil {
		return run, fmt.Errorf("recordRun: %w", tagErr)
	}

	log.Info().Str("run_id", run.ID).Int("tagged", run.TaggedCount).Msg("AI tagging finished")
	return run, nil
}

// tagAndSave tags txs and saves whatever changed, also when a later batch
// fails.
func (s *Service) tagAndSave(ctx context.Context, txs []*domain.Transaction, run *domain.TaggingRun) error {
	changed, tagErr := s.Tag(ctx, txs)
	if len(changed) > 0 {
		updates := make([]domain.Transaction, len(changed))
		for i, tx := range changed {
			updates[i] = *tx
		}
		n, err := s.store.UpdateTransactionTags(ctx, updates)
		run.TaggedCount = n
		if err != nil {
			return err
		}
	}
	return tagErr
}
