package records

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateChainContractConfig inserts a contract location. Admin tooling
// owns these rows; the orchestrator only reads them.
func (d *DB) CreateChainContractConfig(ctx context.Context, c *ChainContractConfig) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO chain_contract_configs (id, name, chain_id, address, abi, rpc_url, deleted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, int64(c.ChainID), c.Address, c.ABI, nullString(c.RPCURL), boolInt(c.Deleted), now,
	); err != nil {
		return fmt.Errorf("failed to insert chain contract config: %w", err)
	}
	c.CreatedAt = fromStamp(now)
	return nil
}

// DeleteChainContractConfig soft-deletes a config.
func (d *DB) DeleteChainContractConfig(ctx context.Context, id string) error {
	res, err := d.exec(ctx, `UPDATE chain_contract_configs SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chain contract config: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: chain contract config %s", ErrNotFound, id))
}

func scanChainConfig(s scanner) (*ChainContractConfig, error) {
	var (
		c                ChainContractConfig
		chainID, created int64
		rpcURL           sql.NullString
		deleted          int
	)
	if err := s.Scan(&c.ID, &c.Name, &chainID, &c.Address, &c.ABI, &rpcURL, &deleted, &created); err != nil {
		return nil, err
	}
	c.ChainID = uint64(chainID)
	c.RPCURL = rpcURL.String
	c.Deleted = deleted != 0
	c.CreatedAt = fromStamp(created)
	return &c, nil
}

// LatestContractConfig returns the most recently created live config for
// (name, chainID).
func (d *DB) LatestContractConfig(ctx context.Context, name string, chainID uint64) (*ChainContractConfig, error) {
	row, err := d.queryRow(ctx,
		`SELECT id, name, chain_id, address, abi, rpc_url, deleted, created_at FROM chain_contract_configs
		 WHERE name = ? AND chain_id = ? AND deleted = 0
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, name, int64(chainID))
	if err != nil {
		return nil, err
	}
	c, err := scanChainConfig(row)
	if err != nil {
		return nil, notFound(err, "chain contract config", fmt.Sprintf("%s@%d", name, chainID))
	}
	return c, nil
}

// ActiveContractConfigs returns the latest live config of name for every
// chain, ordered by chain id.
func (d *DB) ActiveContractConfigs(ctx context.Context, name string) ([]*ChainContractConfig, error) {
	rows, err := d.query(ctx,
		`SELECT id, name, chain_id, address, abi, rpc_url, deleted, created_at FROM chain_contract_configs
		 WHERE name = ? AND deleted = 0
		 ORDER BY chain_id ASC, created_at DESC, rowid DESC`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain contract configs: %w", err)
	}
	defer rows.Close()

	var (
		out  []*ChainContractConfig
		seen = make(map[uint64]bool)
	)
	for rows.Next() {
		c, err := scanChainConfig(rows)
		if err != nil {
			return nil, err
		}
		if seen[c.ChainID] {
			continue
		}
		seen[c.ChainID] = true
		out = append(out, c)
	}
	return out, rows.Err()
}
