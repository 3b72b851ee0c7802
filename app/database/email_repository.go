package database

import (
	"context"
	"fmt"
)

var _ EmailRepository = (*SQLEmailRepository)(nil)

type SQLEmailRepository struct {
	db *DB
}

func NewEmailRepository(db *DB) *SQLEmailRepository {
	return &SQLEmailRepository{db: db}
}

func (r *SQLEmailRepository) UpsertEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_subscribers (email) VALUES (?)
		ON CONFLICT (email) DO NOTHING
	`, email)
	if err != nil {
		return fmt.Errorf("failed to upsert email subscriber: %w", err)
	}
	return nil
}

func (r *SQLEmailRepository) DeleteEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM email_subscribers WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("failed to delete email subscriber: %w", err)
	}
	return nil
}

func (r *SQLEmailRepository) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT email FROM email_subscribers ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list email subscribers: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("failed to scan email row: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating email rows: %w", err)
	}

	return emails, nil
}

func (r *SQLEmailRepository) CountEmails(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_subscribers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count email subscribers: %w", err)
	}
	return count, nil
}
