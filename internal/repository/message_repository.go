package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ErfanBagheri404/panello-lib-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	// Save persists the message, assigning its id and server timestamps.
	Save(ctx context.Context, m *models.Message) error
	// Conversation returns all messages between a and b, ascending by
	// created_at. A zero since means the full history; otherwise since
	// is an exclusive lower bound.
	Conversation(ctx context.Context, a, b uuid.UUID, since time.Time) ([]*models.Message, error)
	// MarkConversationRead flips is_read on unread messages sent by
	// peer to owner. Returns the number of rows touched.
	MarkConversationRead(ctx context.Context, owner, peer uuid.UUID) (int64, error)
}

type PostgresMessagesRepo struct {
	pool *pgxpool.Pool
}

func NewMessagesRepo(pool *pgxpool.Pool) MessageRepository {
	return &PostgresMessagesRepo{
		pool: pool,
	}
}

func (r *PostgresMessagesRepo) Save(ctx context.Context, m *models.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Kind == "" {
		m.Kind = models.KindText
	}

	query := `
        INSERT INTO messages (id, sender_id, receiver_id, content, kind, attachment_url, is_read)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), false)
        RETURNING created_at, updated_at
    `

	err := r.pool.QueryRow(ctx, query,
		m.ID,
		m.SenderID,
		m.ReceiverID,
		m.Content,
		m.Kind,
		m.AttachmentURL,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		log.Printf("[REPO ERROR] Failed to save message %s from %s: %v", m.ID, m.SenderID, err)
		return fmt.Errorf("failed to insert message: %w", err)
	}

	m.IsRead = false
	return nil
}

func (r *PostgresMessagesRepo) Conversation(ctx context.Context, a, b uuid.UUID, since time.Time) ([]*models.Message, error) {
	query := `
        SELECT m.id, m.sender_id, m.receiver_id, COALESCE(u.name, ''), m.content, m.kind,
               COALESCE(m.attachment_url, ''), m.is_read, m.created_at, m.updated_at
        FROM messages m
        LEFT JOIN users u ON u.id = m.sender_id
        WHERE ((m.sender_id = $1 AND m.receiver_id = $2)
            OR (m.sender_id = $2 AND m.receiver_id = $1))
          AND m.created_at > $3
        ORDER BY m.created_at ASC
    `

	rows, err := r.pool.Query(ctx, query, a, b, since)
	if err != nil {
		log.Printf("[REPO ERROR] Conversation fetch failed for (%s, %s): %v", a, b, err)
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
			&m.SenderName,
			&m.Content,
			&m.Kind,
			&m.AttachmentURL,
			&m.IsRead,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			log.Printf("[REPO ERROR] Scan failed: %v", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation rows error: %w", err)
	}

	return messages, nil
}

func (r *PostgresMessagesRepo) MarkConversationRead(ctx context.Context, owner, peer uuid.UUID) (int64, error) {
	query := `
		UPDATE messages
		SET is_read = true, updated_at = now()
		WHERE receiver_id = $1 AND sender_id = $2 AND is_read = false`

	tag, err := r.pool.Exec(ctx, query, owner, peer)

	if err != nil {
		log.Printf("[REPO ERROR] Failed to mark conversation (%s, %s) read: %v", owner, peer, err)
		return 0, fmt.Errorf("database update failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		log.Printf("[REPO INFO] No unread messages from %s to %s", peer, owner)
	}

	return tag.RowsAffected(), nil
}
