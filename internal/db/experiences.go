package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-topics/internal/types"
)

// -----------------------------------------------------------------------------
// Experience Methods
// -----------------------------------------------------------------------------

// GetExperience retrieves an experience by ID. Returns nil, nil when it does not exist.
func (db *DB) GetExperience(ctx context.Context, id int64) (*types.Experience, error) {
	var exp types.Experience
	var lang string
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, description, resume_lang FROM experiences WHERE id = $1`,
		id,
	).Scan(&exp.ID, &exp.UserID, &exp.Description, &lang)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("get experience", err)
	}
	exp.ResumeLang = types.ResumeLang(lang)
	return &exp, nil
}

// CreateExperience inserts an experience and returns it with its ID
func (db *DB) CreateExperience(ctx context.Context, userID uuid.UUID, description string, lang types.ResumeLang) (*types.Experience, error) {
	exp := types.Experience{UserID: userID, Description: description, ResumeLang: lang.Normalize()}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO experiences (user_id, description, resume_lang)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		userID, description, string(exp.ResumeLang),
	).Scan(&exp.ID)
	if err != nil {
		return nil, persistence("create experience", err)
	}
	return &exp, nil
}

// -----------------------------------------------------------------------------
// Enhanced Experience Methods
// -----------------------------------------------------------------------------

// GetEnhancedExperience retrieves the refined topics saved for an experience.
// Returns nil, nil when the experience was never enhanced.
func (db *DB) GetEnhancedExperience(ctx context.Context, expID int64) ([]types.RefinedTopic, error) {
	var raw []byte
	err := db.pool.QueryRow(ctx,
		`SELECT topics FROM enhanced_experiences WHERE experience_id = $1
		 ORDER BY updated_at DESC LIMIT 1`,
		expID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("get enhanced experience", err)
	}

	topics, err := decodeRefined(raw)
	if err != nil {
		return nil, persistence("get enhanced experience", err)
	}
	return topics, nil
}

// GetEnhancedExperienceRecord retrieves the full enhanced_experiences row for (user, experience)
func (db *DB) GetEnhancedExperienceRecord(ctx context.Context, userID uuid.UUID, expID int64) (*EnhancedExperience, error) {
	var rec EnhancedExperience
	var lang string
	var raw []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, experience_id, resume_lang, topics, created_at, updated_at
		 FROM enhanced_experiences WHERE user_id = $1 AND experience_id = $2`,
		userID, expID,
	).Scan(&rec.ID, &rec.UserID, &rec.ExperienceID, &lang, &raw, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("get enhanced experience record", err)
	}

	rec.ResumeLang = types.ResumeLang(lang)
	if rec.Topics, err = decodeRefined(raw); err != nil {
		return nil, persistence("get enhanced experience record", err)
	}
	return &rec, nil
}

// UpsertEnhancedExperience inserts or overwrites the refined topics of (user, experience)
// and refreshes updated_at.
func (db *DB) UpsertEnhancedExperience(ctx context.Context, topics []types.RefinedTopic, userID uuid.UUID, expID int64, lang types.ResumeLang) error {
	raw, err := encodeRefined(topics)
	if err != nil {
		return persistence("upsert enhanced experience", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO enhanced_experiences (user_id, experience_id, resume_lang, topics)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, experience_id) DO UPDATE SET
		     resume_lang = EXCLUDED.resume_lang,
		     topics = EXCLUDED.topics,
		     updated_at = NOW()`,
		userID, expID, string(lang.Normalize()), raw,
	)
	if err != nil {
		return persistence("upsert enhanced experience", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Career Path Methods
// -----------------------------------------------------------------------------

// GetCareerPath retrieves a career path owned by userID. Returns nil, nil when absent or owned by someone else.
func (db *DB) GetCareerPath(ctx context.Context, id int64, userID uuid.UUID) (*types.CareerPath, error) {
	var cp types.CareerPath
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, title, description FROM career_paths WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&cp.ID, &cp.UserID, &cp.Title, &cp.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("get career path", err)
	}
	return &cp, nil
}

// CreateCareerPath inserts a career path and returns it with its ID
func (db *DB) CreateCareerPath(ctx context.Context, userID uuid.UUID, title, description string) (*types.CareerPath, error) {
	cp := types.CareerPath{UserID: userID, Title: title, Description: description}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO career_paths (user_id, title, description) VALUES ($1, $2, $3) RETURNING id`,
		userID, title, description,
	).Scan(&cp.ID)
	if err != nil {
		return nil, persistence("create career path", err)
	}
	return &cp, nil
}
