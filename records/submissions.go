package records

import (
	"context"
	"database/sql"
	"fmt"
)

const submissionColumns = `id, kind, subject_id, status, commodity, value_project, max_crowd_funding,
	metadata_cid, submitted_by, approved_by, rejection_reason, blockchain_tx_id, minted_token_id,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(s scanner) (*Submission, error) {
	var (
		sub                               Submission
		approvedBy, reason, txID, tokenID sql.NullString
		created, updated                  int64
	)
	if err := s.Scan(&sub.ID, &sub.Kind, &sub.SubjectID, &sub.Status, &sub.Commodity,
		&sub.ValueProject, &sub.MaxCrowdFunding, &sub.MetadataCID, &sub.SubmittedBy,
		&approvedBy, &reason, &txID, &tokenID, &created, &updated); err != nil {
		return nil, err
	}
	sub.ApprovedBy = approvedBy.String
	sub.RejectionReason = reason.String
	sub.BlockchainTxID = txID.String
	sub.MintedTokenID = tokenID.String
	sub.CreatedAt = fromStamp(created)
	sub.UpdatedAt = fromStamp(updated)
	return &sub, nil
}

// CreateSubmission inserts s in SUBMITTED state. A second live submission
// for the same subject fails with ErrConflict.
func (d *DB) CreateSubmission(ctx context.Context, s *Submission) error {
	if s.ID == "" {
		s.ID = newID()
	}
	s.Status = StatusSubmitted
	now := d.stamp()
	if _, err := d.exec(ctx,
		`INSERT INTO submissions (id, kind, subject_id, status, commodity, value_project, max_crowd_funding,
			metadata_cid, submitted_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Kind, s.SubjectID, s.Status, s.Commodity, s.ValueProject, s.MaxCrowdFunding,
		s.MetadataCID, s.SubmittedBy, now, now,
	); err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	s.CreatedAt = fromStamp(now)
	s.UpdatedAt = s.CreatedAt
	return nil
}

// GetSubmission loads a live submission of kind by id.
func (d *DB) GetSubmission(ctx context.Context, kind SubmissionKind, id string) (*Submission, error) {
	row, err := d.queryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ? AND kind = ? AND deleted = 0`, id, kind)
	if err != nil {
		return nil, err
	}
	s, err := scanSubmission(row)
	if err != nil {
		return nil, notFound(err, "submission", id)
	}
	return s, nil
}

// FindSubmissionBySubject returns the live submission for a subject.
func (d *DB) FindSubmissionBySubject(ctx context.Context, kind SubmissionKind, subjectID string) (*Submission, error) {
	row, err := d.queryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE kind = ? AND subject_id = ? AND deleted = 0`, kind, subjectID)
	if err != nil {
		return nil, err
	}
	s, err := scanSubmission(row)
	if err != nil {
		return nil, notFound(err, "submission for subject", subjectID)
	}
	return s, nil
}

// ListSubmissions returns live submissions of kind, newest first. An empty
// status matches all.
func (d *DB) ListSubmissions(ctx context.Context, kind SubmissionKind, status SubmissionStatus) ([]*Submission, error) {
	rows, err := d.query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE kind = ? AND deleted = 0 AND (? = '' OR status = ?)
		 ORDER BY created_at DESC`, kind, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkSubmissionApproved moves SUBMITTED to APPROVED. The status check and
// the write are one conditional update, so of two concurrent approvals
// exactly one succeeds; the other gets ErrStaleState.
func (d *DB) MarkSubmissionApproved(ctx context.Context, id, approvedBy string) error {
	res, err := d.exec(ctx,
		`UPDATE submissions SET status = ?, approved_by = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND deleted = 0`,
		StatusApproved, nullString(approvedBy), d.stamp(), id, StatusSubmitted)
	if err != nil {
		return fmt.Errorf("failed to approve submission: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: submission %s is not %s", ErrStaleState, id, StatusSubmitted))
}

// RevertSubmissionToSubmitted undoes an approval whose mint failed.
func (d *DB) RevertSubmissionToSubmitted(ctx context.Context, id string) error {
	res, err := d.exec(ctx,
		`UPDATE submissions SET status = ?, approved_by = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND deleted = 0`,
		StatusSubmitted, d.stamp(), id, StatusApproved)
	if err != nil {
		return fmt.Errorf("failed to revert submission: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: submission %s is not %s", ErrStaleState, id, StatusApproved))
}

// MarkSubmissionMinted moves APPROVED to MINTED, linking the audit record
// and the minted token id (which may be empty when no event was found).
func (d *DB) MarkSubmissionMinted(ctx context.Context, id, txID, tokenID string) error {
	res, err := d.exec(ctx,
		`UPDATE submissions SET status = ?, blockchain_tx_id = ?, minted_token_id = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND deleted = 0`,
		StatusMinted, nullString(txID), nullString(tokenID), d.stamp(), id, StatusApproved)
	if err != nil {
		return fmt.Errorf("failed to mark submission minted: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: submission %s is not %s", ErrStaleState, id, StatusApproved))
}

// MarkSubmissionRejected moves SUBMITTED to REJECTED.
func (d *DB) MarkSubmissionRejected(ctx context.Context, id, rejectedBy, reason string) error {
	res, err := d.exec(ctx,
		`UPDATE submissions SET status = ?, approved_by = ?, rejection_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND deleted = 0`,
		StatusRejected, nullString(rejectedBy), nullString(reason), d.stamp(), id, StatusSubmitted)
	if err != nil {
		return fmt.Errorf("failed to reject submission: %w", err)
	}
	return affectOne(res, fmt.Errorf("%w: submission %s is not %s", ErrStaleState, id, StatusSubmitted))
}
