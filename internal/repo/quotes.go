package repo

import (
	"context"
	"database/sql"

	"arborplan/internal/domain"
)

func (r Repo) InsertQuoteTx(ctx context.Context, tx *sql.Tx, q domain.Quote) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO quotes(id,lead_id,agent_run_id,subtotal_cents,total_cents,confidence,created_at)
VALUES (?,?,?,?,?,?,?)`,
		q.ID, q.LeadID, q.AgentRunID, q.SubtotalCents, q.TotalCents, q.Confidence, q.CreatedAt)
	return err
}

func (r Repo) InsertQuoteLineItemTx(ctx context.Context, tx *sql.Tx, item domain.QuoteLineItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO quote_line_items(id,quote_id,description,quantity,unit_price_cents,total_cents,created_at)
VALUES (?,?,?,?,?,?,?)`,
		item.ID, item.QuoteID, item.Description, item.Quantity, item.UnitPriceCents, item.TotalCents, item.CreatedAt)
	return err
}

func (r Repo) GetQuote(ctx context.Context, id string) (domain.Quote, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,lead_id,agent_run_id,subtotal_cents,total_cents,confidence,created_at FROM quotes WHERE id=?`, id)
	var q domain.Quote
	err := row.Scan(&q.ID, &q.LeadID, &q.AgentRunID, &q.SubtotalCents, &q.TotalCents, &q.Confidence, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	if err != nil {
		return q, err
	}
	q.LineItems, err = r.listQuoteLineItems(ctx, q.ID)
	return q, err
}

func (r Repo) ListQuotesByLead(ctx context.Context, leadID string) ([]domain.Quote, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,lead_id,agent_run_id,subtotal_cents,total_cents,confidence,created_at FROM quotes WHERE lead_id=? ORDER BY created_at DESC, id DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quotes []domain.Quote
	for rows.Next() {
		var q domain.Quote
		if err := rows.Scan(&q.ID, &q.LeadID, &q.AgentRunID, &q.SubtotalCents, &q.TotalCents, &q.Confidence, &q.CreatedAt); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range quotes {
		items, err := r.listQuoteLineItems(ctx, quotes[i].ID)
		if err != nil {
			return nil, err
		}
		quotes[i].LineItems = items
	}
	return quotes, nil
}

func (r Repo) listQuoteLineItems(ctx context.Context, quoteID string) ([]domain.QuoteLineItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,quote_id,description,quantity,unit_price_cents,total_cents,created_at FROM quote_line_items WHERE quote_id=? ORDER BY created_at, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.QuoteLineItem
	for rows.Next() {
		var item domain.QuoteLineItem
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.Description, &item.Quantity, &item.UnitPriceCents, &item.TotalCents, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r Repo) CountQuotesByRun(ctx context.Context, agentRunID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes WHERE agent_run_id=?`, agentRunID).Scan(&n)
	return n, err
}
