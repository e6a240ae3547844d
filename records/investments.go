package records

import (
	"context"
	"database/sql"
	"fmt"
)

const investmentColumns = `id, user_id, project_id, chain_id, amount, status, receipt_token_id, tx_hash,
	block_number, created_at, updated_at`

func scanInvestment(s scanner) (*Investment, error) {
	var (
		inv                    Investment
		chainID, block         int64
		created, updated       int64
		receiptTokenID, txHash sql.NullString
	)
	if err := s.Scan(&inv.ID, &inv.UserID, &inv.ProjectID, &chainID, &inv.Amount, &inv.Status,
		&receiptTokenID, &txHash, &block, &created, &updated); err != nil {
		return nil, err
	}
	inv.ChainID = uint64(chainID)
	inv.ReceiptTokenID = receiptTokenID.String
	inv.TxHash = txHash.String
	inv.BlockNumber = uint64(block)
	inv.CreatedAt = fromStamp(created)
	inv.UpdatedAt = fromStamp(updated)
	return &inv, nil
}

// CreateInvestment inserts inv in CREATED state.
func (d *DB) CreateInvestment(ctx context.Context, inv *Investment) error {
	if inv.ID == "" {
		inv.ID = newID()
	}
	inv.Status = RecordCreated
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO investments (id, user_id, project_id, chain_id, amount, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.UserID, inv.ProjectID, int64(inv.ChainID), inv.Amount, inv.Status, now, now,
	); err != nil {
		return fmt.Errorf("failed to insert investment: %w", err)
	}
	inv.CreatedAt = fromStamp(now)
	inv.UpdatedAt = inv.CreatedAt
	return nil
}

// GetInvestment loads a live investment by id.
func (d *DB) GetInvestment(ctx context.Context, id string) (*Investment, error) {
	row, err := d.queryRow(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return nil, err
	}
	inv, err := scanInvestment(row)
	if err != nil {
		return nil, notFound(err, "investment", id)
	}
	return inv, nil
}

// ConfirmInvestment records the on-chain outcome of a CREATED investment.
func (d *DB) ConfirmInvestment(ctx context.Context, id, receiptTokenID, txHash string, block uint64) error {
	res, err := d.exec(ctx,
		`UPDATE investments SET status = ?, receipt_token_id = ?, tx_hash = ?, block_number = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND deleted = 0`,
		RecordConfirmed, nullString(receiptTokenID), nullString(txHash), int64(block), d.stamp(), id, RecordCreated)
	if err != nil {
		return fmt.Errorf("failed to confirm investment: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: investment %s is not %s", ErrStaleState, id, RecordCreated))
}

// DeleteInvestment removes the row outright. Used to roll back a failed
// invest call.
func (d *DB) DeleteInvestment(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `DELETE FROM investments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete investment: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: investment %s", ErrNotFound, id))
}

// SoftDeleteInvestment hides a refunded investment while keeping history.
func (d *DB) SoftDeleteInvestment(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `UPDATE investments SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`, d.stamp(), id)
	if err != nil {
		return fmt.Errorf("failed to soft delete investment: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: investment %s", ErrNotFound, id))
}

// ListActiveInvestments returns live investments of a user, optionally
// restricted to one project, oldest first.
func (d *DB) ListActiveInvestments(ctx context.Context, userID, projectID string) ([]*Investment, error) {
	rows, err := d.query(ctx,
		`SELECT `+investmentColumns+` FROM investments
		 WHERE user_id = ? AND deleted = 0 AND (? = '' OR project_id = ?)
		 ORDER BY created_at ASC`, userID, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments: %w", err)
	}
	defer rows.Close()

	var out []*Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListInvestorIDs returns every user holding a live investment or a stored
// portfolio, ordered by id.
func (d *DB) ListInvestorIDs(ctx context.Context) ([]string, error) {
	rows, err := d.query(ctx,
		`SELECT user_id FROM investments WHERE deleted = 0
		 UNION SELECT user_id FROM portfolios
		 ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list investors: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateClaim inserts c in CREATED state.
func (d *DB) CreateClaim(ctx context.Context, c *Claim) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.Status = RecordCreated
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO claims (id, kind, user_id, project_id, chain_id, amount, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Kind, c.UserID, c.ProjectID, int64(c.ChainID), nullString(c.Amount), c.Status, now, now,
	); err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	c.CreatedAt = fromStamp(now)
	c.UpdatedAt = c.CreatedAt
	return nil
}

// GetClaim loads a claim by id.
func (d *DB) GetClaim(ctx context.Context, id string) (*Claim, error) {
	row, err := d.queryRow(ctx,
		`SELECT id, kind, user_id, project_id, chain_id, amount, status, tx_hash, block_number, created_at, updated_at
		 FROM claims WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	var (
		c                 Claim
		chainID, block    int64
		created, updated  int64
		amountStr, txHash sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Kind, &c.UserID, &c.ProjectID, &chainID, &amountStr, &c.Status,
		&txHash, &block, &created, &updated); err != nil {
		return nil, notFound(err, "claim", id)
	}
	c.ChainID = uint64(chainID)
	c.Amount = amountStr.String
	c.TxHash = txHash.String
	c.BlockNumber = uint64(block)
	c.CreatedAt = fromStamp(created)
	c.UpdatedAt = fromStamp(updated)
	return &c, nil
}

// ConfirmClaim records the amount the contract paid out.
func (d *DB) ConfirmClaim(ctx context.Context, id, amount, txHash string, block uint64) error {
	res, err := d.exec(ctx,
		`UPDATE claims SET status = ?, amount = ?, tx_hash = ?, block_number = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		RecordConfirmed, nullString(amount), nullString(txHash), int64(block), d.stamp(), id, RecordCreated)
	if err != nil {
		return fmt.Errorf("failed to confirm claim: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: claim %s is not %s", ErrStaleState, id, RecordCreated))
}

// DeleteClaim removes a claim whose chain call failed.
func (d *DB) DeleteClaim(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `DELETE FROM claims WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: claim %s", ErrNotFound, id))
}
