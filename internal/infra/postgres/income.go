package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// GetIncomeProfile returns the user's income profile, or domain.ErrNotFound.
func (r *Repository) GetIncomeProfile(ctx context.Context, userID string) (*domain.IncomeProfile, error) {
	var p domain.IncomeProfile
	var freq *string
	err := r.db.QueryRow(ctx, `SELECT user_id::text, monthly_income, pay_frequency, next_pay_date
		FROM income_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.MonthlyIncome, &freq, &p.NextPayDate)
	if err != nil {
		return nil, fmt.Errorf("GetIncomeProfile: %w", WrapError(err))
	}
	if freq != nil {
		p.PayFrequency = domain.Frequency(*freq)
	}
	return &p, nil
}
