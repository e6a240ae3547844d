package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/0xmhha/stomatrade-go/amount"
)

func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if d.closed.Load() {
		return ErrClosed
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetProfitPool returns the pool of a project, or ErrNotFound before the
// first deposit.
func (d *DB) GetProfitPool(ctx context.Context, projectID string) (*ProfitPool, error) {
	row, err := d.queryRow(ctx,
		`SELECT project_id, total_profit, claimed_total, updated_at FROM profit_pools WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	var (
		p       ProfitPool
		updated int64
	)
	if err := row.Scan(&p.ProjectID, &p.TotalProfit, &p.ClaimedTotal, &updated); err != nil {
		return nil, notFound(err, "profit pool", projectID)
	}
	p.UpdatedAt = fromStamp(updated)
	return &p, nil
}

// AddProfitDeposit adds delta to the project's deposited profit.
func (d *DB) AddProfitDeposit(ctx context.Context, projectID, delta string) (*ProfitPool, error) {
	return d.adjustPool(ctx, projectID, delta, "")
}

// AddProfitClaimed adds delta to the project's claimed profit.
func (d *DB) AddProfitClaimed(ctx context.Context, projectID, delta string) (*ProfitPool, error) {
	return d.adjustPool(ctx, projectID, "", delta)
}

func (d *DB) adjustPool(ctx context.Context, projectID, deposit, claimed string) (*ProfitPool, error) {
	var out *ProfitPool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		pool := ProfitPool{ProjectID: projectID, TotalProfit: "0", ClaimedTotal: "0"}
		err := tx.QueryRowContext(ctx,
			`SELECT total_profit, claimed_total FROM profit_pools WHERE project_id = ?`, projectID,
		).Scan(&pool.TotalProfit, &pool.ClaimedTotal)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if pool.TotalProfit, err = amount.Add(pool.TotalProfit, deposit); err != nil {
			return err
		}
		if pool.ClaimedTotal, err = amount.Add(pool.ClaimedTotal, claimed); err != nil {
			return err
		}

		now := d.stamp()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profit_pools (project_id, total_profit, claimed_total, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(project_id) DO UPDATE SET total_profit = excluded.total_profit,
				claimed_total = excluded.claimed_total, updated_at = excluded.updated_at`,
			projectID, pool.TotalProfit, pool.ClaimedTotal, now,
		); err != nil {
			return err
		}
		pool.UpdatedAt = fromStamp(now)
		out = &pool
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profit pool: %w", err)
	}
	return out, nil
}

// RecalculatePortfolio rebuilds a user's portfolio from live confirmed
// investments.
func (d *DB) RecalculatePortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	investments, err := d.ListActiveInvestments(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	p := &Portfolio{UserID: userID, TotalInvested: "0"}
	projects := make(map[string]struct{})
	for _, inv := range investments {
		if inv.Status != RecordConfirmed {
			continue
		}
		if p.TotalInvested, err = amount.Add(p.TotalInvested, inv.Amount); err != nil {
			return nil, fmt.Errorf("investment %s: %w", inv.ID, err)
		}
		p.ActiveInvestments++
		projects[inv.ProjectID] = struct{}{}
	}
	p.ProjectCount = len(projects)

	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO portfolios (user_id, total_invested, active_investments, project_count, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET total_invested = excluded.total_invested,
			active_investments = excluded.active_investments, project_count = excluded.project_count,
			updated_at = excluded.updated_at`,
		p.UserID, p.TotalInvested, p.ActiveInvestments, p.ProjectCount, now,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert portfolio: %w", err)
	}
	p.UpdatedAt = fromStamp(now)
	return p, nil
}

// GetPortfolio loads a user's portfolio.
func (d *DB) GetPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	row, err := d.queryRow(ctx,
		`SELECT user_id, total_invested, active_investments, project_count, updated_at FROM portfolios WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	var (
		p       Portfolio
		updated int64
	)
	if err := row.Scan(&p.UserID, &p.TotalInvested, &p.ActiveInvestments, &p.ProjectCount, &updated); err != nil {
		return nil, notFound(err, "portfolio", userID)
	}
	p.UpdatedAt = fromStamp(updated)
	return &p, nil
}
