// Package bigquery exports transactions and SMS activity to the BigQuery
// analytics warehouse and runs reporting queries against it.
package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budgenudge/internal/logger"
)

const (
	transactionsTable = "transactions"
	smsSendsTable     = "sms_sends"
	dateFormat        = "2006-01-02"
)

// Warehouse holds a shared BigQuery client for one dataset.
//
// All writes go through DML rather than the streaming inserter: rows in the
// streaming buffer cannot be deleted or updated, which would break the next
// export of an overlapping window.
type Warehouse struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewWarehouse creates a client for projectID.
func NewWarehouse(ctx context.Context, projectID, datasetID string) (*Warehouse, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewWarehouse: creating client: %w", err)
	}
	return &Warehouse{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (w *Warehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

func (w *Warehouse) table(name string) string {
	return "`" + w.projectID + "." + w.datasetID + "." + name + "`"
}

// ReplaceTransactions swaps the user's exported rows in [start, end] for
// rows. The delete and the insert run in one multi-statement transaction, so
// a failed export leaves the previous rows in place.
func (w *Warehouse) ReplaceTransactions(ctx context.Context, userID string, start, end time.Time, rows []*TransactionRow) error {
	log := logger.FromContext(ctx)

	sql, params, err := w.replaceTransactionsQuery(userID, start, end, rows)
	if err != nil {
		return fmt.Errorf("ReplaceTransactions: %w", err)
	}
	if err := w.exec(ctx, sql, params); err != nil {
		return fmt.Errorf("ReplaceTransactions: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("start", start.Format(dateFormat)).
		Str("end", end.Format(dateFormat)).
		Int("rows", len(rows)).
		Msg("Exported transactions to warehouse")
	return nil
}

func (w *Warehouse) replaceTransactionsQuery(userID string, start, end time.Time, rows []*TransactionRow) (string, []bigquery.QueryParameter, error) {
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: civil.DateOf(start)},
		{Name: "end_date", Value: civil.DateOf(end)},
	}
	del := `DELETE FROM ` + w.table(transactionsTable) + `
		WHERE user_id = @user_id
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date;`
	if len(rows) == 0 {
		return del, params, nil
	}

	cols, err := columnList(TransactionRow{})
	if err != nil {
		return "", nil, err
	}
	values := make([]TransactionRow, len(rows))
	for i, r := range rows {
		values[i] = *r
	}
	params = append(params, bigquery.QueryParameter{Name: "rows", Value: values})

	sql := `BEGIN TRANSACTION;
		` + del + `
		INSERT INTO ` + w.table(transactionsTable) + ` (` + cols + `)
		SELECT ` + cols + ` FROM UNNEST(@rows);
		COMMIT TRANSACTION;`
	return sql, params, nil
}

// InsertSMSSends upserts send-log rows keyed on log_id, so exporting the
// same day twice updates rows instead of duplicating them.
func (w *Warehouse) InsertSMSSends(ctx context.Context, rows []*SMSSendRow) error {
	if len(rows) == 0 {
		return nil
	}
	sql, params, err := w.mergeSMSSendsQuery(rows)
	if err != nil {
		return fmt.Errorf("InsertSMSSends: %w", err)
	}
	if err := w.exec(ctx, sql, params); err != nil {
		return fmt.Errorf("InsertSMSSends: %w", err)
	}
	return nil
}

func (w *Warehouse) mergeSMSSendsQuery(rows []*SMSSendRow) (string, []bigquery.QueryParameter, error) {
	cols, err := columnList(SMSSendRow{})
	if err != nil {
		return "", nil, err
	}
	values := make([]SMSSendRow, len(rows))
	for i, r := range rows {
		values[i] = *r
	}
	sql := `MERGE ` + w.table(smsSendsTable) + ` T
		USING UNNEST(@rows) S
		ON T.log_id = S.log_id
		WHEN MATCHED THEN UPDATE SET
			status = S.status,
			message_id = S.message_id,
			body_length = S.body_length,
			exported_ts = S.exported_ts
		WHEN NOT MATCHED THEN
			INSERT (` + cols + `) VALUES (S.` + strings.ReplaceAll(cols, ", ", ", S.") + `)`
	return sql, []bigquery.QueryParameter{{Name: "rows", Value: values}}, nil
}

// columnList returns the comma-separated column names of a row struct, in
// field order, as BigQuery infers them from its tags.
func columnList(row interface{}) (string, error) {
	schema, err := bigquery.InferSchema(row)
	if err != nil {
		return "", fmt.Errorf("inferring schema: %w", err)
	}
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
	}
	return strings.Join(names, ", "), nil
}

// MonthlyCategorySpend delegates to MonthlyCategorySpendWithClient.
func (w *Warehouse) MonthlyCategorySpend(ctx context.Context, userID string, start, end time.Time) ([]*CategorySpendRow, error) {
	return MonthlyCategorySpendWithClient(ctx, w.client, w.table(transactionsTable), userID, start, end)
}

// MonthlyCategorySpendWithClient totals outflows per month and category.
// AI category tags take precedence over Plaid categories.
func MonthlyCategorySpendWithClient(ctx context.Context, client *bigquery.Client, table, userID string, start, end time.Time) ([]*CategorySpendRow, error) {
	q := client.Query(`
		SELECT
			DATE_TRUNC(transaction_date, MONTH) AS month,
			COALESCE(ai_category_tag, category, 'Uncategorized') AS category,
			SUM(amount) AS total,
			COUNT(*) AS transactions
		FROM ` + table + `
		WHERE user_id = @user_id
		  AND is_outflow
		  AND transaction_date >= @start_date
		  AND transaction_date <= @end_date
		GROUP BY month, category
		ORDER BY month, total DESC
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "start_date", Value: civil.DateOf(start)},
		{Name: "end_date", Value: civil.DateOf(end)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("MonthlyCategorySpend: query read: %w", err)
	}

	var rows []*CategorySpendRow
	for {
		var r CategorySpendRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("MonthlyCategorySpend: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
