package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-topics/internal/types"
)

const topicColumns = `id, user_id, experience_id, career_path_id, ordinal, topic, pre_topic, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(row rowScanner) (*types.StoredTopic, error) {
	var st types.StoredTopic
	var raw []byte
	if err := row.Scan(&st.ID, &st.UserID, &st.ExperienceID, &st.CareerPathID, &st.Ordinal, &st.Topic.Topic, &raw, &st.UpdatedAt); err != nil {
		return nil, err
	}
	pre, err := decodePreTopic(raw)
	if err != nil {
		return nil, err
	}
	st.PreTopic = pre
	return &st, nil
}

// ReplaceTopics swaps the topic list of (user, experience, career path) for topics, in order,
// inside one transaction. Returns the stored rows with their new IDs.
func (db *DB) ReplaceTopics(ctx context.Context, userID uuid.UUID, expID, careerPathID int64, topics []types.Topic) ([]types.StoredTopic, error) {
	stored := make([]types.StoredTopic, 0, len(topics))
	err := db.withTx(ctx, "replace topics", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM topics WHERE user_id = $1 AND experience_id = $2 AND career_path_id = $3`,
			userID, expID, careerPathID,
		); err != nil {
			return persistence("delete topics", err)
		}

		for i, t := range topics {
			pre, err := encodePreTopic(t.PreTopic)
			if err != nil {
				return persistence("insert topic", err)
			}
			row := tx.QueryRow(ctx,
				`INSERT INTO topics (user_id, experience_id, career_path_id, ordinal, topic, pre_topic)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 RETURNING `+topicColumns,
				userID, expID, careerPathID, i+1, t.Topic, pre,
			)
			st, err := scanTopic(row)
			if err != nil {
				return persistence("insert topic", err)
			}
			stored = append(stored, *st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// GetTopic retrieves a topic by ID. Returns nil, nil when it does not exist.
func (db *DB) GetTopic(ctx context.Context, id int64) (*types.StoredTopic, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	st, err := scanTopic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("get topic", err)
	}
	return st, nil
}

// ListTopics retrieves the topics of (user, experience, career path) ordered by ordinal
func (db *DB) ListTopics(ctx context.Context, userID uuid.UUID, expID, careerPathID int64) ([]types.StoredTopic, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+topicColumns+` FROM topics
		 WHERE user_id = $1 AND experience_id = $2 AND career_path_id = $3
		 ORDER BY ordinal`,
		userID, expID, careerPathID,
	)
	if err != nil {
		return nil, persistence("list topics", err)
	}
	defer rows.Close()

	topics := []types.StoredTopic{}
	for rows.Next() {
		st, err := scanTopic(rows)
		if err != nil {
			return nil, persistence("scan topic", err)
		}
		topics = append(topics, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list topics", err)
	}
	return topics, nil
}

// UpdateTopic overwrites the text of a topic. Returns nil, nil when it does not exist.
func (db *DB) UpdateTopic(ctx context.Context, id int64, text string) (*types.StoredTopic, error) {
	row := db.pool.QueryRow(ctx,
		`UPDATE topics SET topic = $2, updated_at = NOW() WHERE id = $1 RETURNING `+topicColumns,
		id, text,
	)
	st, err := scanTopic(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("update topic", err)
	}
	return st, nil
}
