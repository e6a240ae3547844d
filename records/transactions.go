package records

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertTransaction appends an audit entry. Entries are never updated.
func (d *DB) InsertTransaction(ctx context.Context, tx *BlockchainTransaction) error {
	if tx.ID == "" {
		tx.ID = newID()
	}
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO blockchain_transactions (id, chain_id, hash, kind, status, from_address, to_address,
			block_number, gas_used, gas_price, event_data, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, int64(tx.ChainID), nullString(tx.Hash), tx.Kind, tx.Status, tx.From, nullString(tx.To),
		int64(tx.BlockNumber), int64(tx.GasUsed), nullString(tx.GasPrice), nullString(tx.EventData),
		nullString(tx.ErrorMessage), now,
	); err != nil {
		return fmt.Errorf("failed to insert blockchain transaction: %w", err)
	}
	tx.CreatedAt = fromStamp(now)
	return nil
}

const transactionColumns = `id, chain_id, hash, kind, status, from_address, to_address, block_number,
	gas_used, gas_price, event_data, error_message, created_at`

func scanTransaction(s scanner) (*BlockchainTransaction, error) {
	var (
		tx                                   BlockchainTransaction
		chainID, block, gas, created         int64
		hash, to, price, eventData, errorMsg sql.NullString
	)
	if err := s.Scan(&tx.ID, &chainID, &hash, &tx.Kind, &tx.Status, &tx.From, &to, &block,
		&gas, &price, &eventData, &errorMsg, &created); err != nil {
		return nil, err
	}
	tx.ChainID = uint64(chainID)
	tx.Hash = hash.String
	tx.To = to.String
	tx.BlockNumber = uint64(block)
	tx.GasUsed = uint64(gas)
	tx.GasPrice = price.String
	tx.EventData = eventData.String
	tx.ErrorMessage = errorMsg.String
	tx.CreatedAt = fromStamp(created)
	return &tx, nil
}

// GetTransaction loads an audit entry by id.
func (d *DB) GetTransaction(ctx context.Context, id string) (*BlockchainTransaction, error) {
	row, err := d.queryRow(ctx, `SELECT `+transactionColumns+` FROM blockchain_transactions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	tx, err := scanTransaction(row)
	if err != nil {
		return nil, notFound(err, "blockchain transaction", id)
	}
	return tx, nil
}

// ListTransactions returns audit entries of kind, oldest first. An empty
// kind matches all.
func (d *DB) ListTransactions(ctx context.Context, kind TxKind) ([]*BlockchainTransaction, error) {
	rows, err := d.query(ctx,
		`SELECT `+transactionColumns+` FROM blockchain_transactions
		 WHERE (? = '' OR kind = ?) ORDER BY created_at ASC, rowid ASC`, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list blockchain transactions: %w", err)
	}
	defer rows.Close()

	var out []*BlockchainTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
