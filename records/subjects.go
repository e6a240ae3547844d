package records

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateUser inserts u, assigning an id when empty.
func (d *DB) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO users (id, wallet_address, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.WalletAddress, u.Name, now,
	); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	u.CreatedAt = fromStamp(now)
	return nil
}

// GetUser loads a user by id.
func (d *DB) GetUser(ctx context.Context, id string) (*User, error) {
	row, err := d.queryRow(ctx, `SELECT id, wallet_address, name, created_at FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	var (
		u       User
		created int64
	)
	if err := row.Scan(&u.ID, &u.WalletAddress, &u.Name, &created); err != nil {
		return nil, notFound(err, "user", id)
	}
	u.CreatedAt = fromStamp(created)
	return &u, nil
}

// CreateFarmer inserts f, assigning an id when empty.
func (d *DB) CreateFarmer(ctx context.Context, f *Farmer) error {
	if f.ID == "" {
		f.ID = newID()
	}
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO farmers (id, collector_id, name, age, domicile, token_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.CollectorID, f.Name, f.Age, f.Domicile, nullString(f.TokenID), now,
	); err != nil {
		return fmt.Errorf("failed to insert farmer: %w", err)
	}
	f.CreatedAt = fromStamp(now)
	return nil
}

// GetFarmer loads a farmer by id.
func (d *DB) GetFarmer(ctx context.Context, id string) (*Farmer, error) {
	row, err := d.queryRow(ctx,
		`SELECT id, collector_id, name, age, domicile, token_id, created_at FROM farmers WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	var (
		f       Farmer
		token   sql.NullString
		created int64
	)
	if err := row.Scan(&f.ID, &f.CollectorID, &f.Name, &f.Age, &f.Domicile, &token, &created); err != nil {
		return nil, notFound(err, "farmer", id)
	}
	f.TokenID = token.String
	f.CreatedAt = fromStamp(created)
	return &f, nil
}

// SetFarmerTokenID back-fills the minted NFT id.
func (d *DB) SetFarmerTokenID(ctx context.Context, id, tokenID string) error {
	res, err := d.exec(ctx, `UPDATE farmers SET token_id = ? WHERE id = ?`, nullString(tokenID), id)
	if err != nil {
		return fmt.Errorf("failed to update farmer token: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: farmer %s", ErrNotFound, id))
}

// CreateProject inserts p, assigning an id when empty.
func (d *DB) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = newID()
	}
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO projects (id, farmer_id, name, commodity, token_id, refundable, closed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.FarmerID, p.Name, p.Commodity, nullString(p.TokenID), boolInt(p.Refundable), boolInt(p.Closed), now,
	); err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	p.CreatedAt = fromStamp(now)
	return nil
}

// GetProject loads a project by id.
func (d *DB) GetProject(ctx context.Context, id string) (*Project, error) {
	row, err := d.queryRow(ctx,
		`SELECT id, farmer_id, name, commodity, token_id, refundable, closed, created_at FROM projects WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	var (
		p          Project
		token      sql.NullString
		refundable int
		closed     int
		created    int64
	)
	if err := row.Scan(&p.ID, &p.FarmerID, &p.Name, &p.Commodity, &token, &refundable, &closed, &created); err != nil {
		return nil, notFound(err, "project", id)
	}
	p.TokenID = token.String
	p.Refundable = refundable != 0
	p.Closed = closed != 0
	p.CreatedAt = fromStamp(created)
	return &p, nil
}

// SetProjectTokenID back-fills the minted NFT id.
func (d *DB) SetProjectTokenID(ctx context.Context, id, tokenID string) error {
	res, err := d.exec(ctx, `UPDATE projects SET token_id = ? WHERE id = ?`, nullString(tokenID), id)
	if err != nil {
		return fmt.Errorf("failed to update project token: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: project %s", ErrNotFound, id))
}

// SetProjectRefundable flags a project as open for refund claims.
func (d *DB) SetProjectRefundable(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `UPDATE projects SET refundable = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark project refundable: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: project %s", ErrNotFound, id))
}

// SetProjectClosed flags a project as closed for funding.
func (d *DB) SetProjectClosed(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `UPDATE projects SET closed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to close project: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: project %s", ErrNotFound, id))
}
