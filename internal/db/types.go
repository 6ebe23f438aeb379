package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/types"
)

// EnhancedExperience is a row of enhanced_experiences
type EnhancedExperience struct {
	ID           int64                `json:"id"`
	UserID       uuid.UUID            `json:"user_id"`
	ExperienceID int64                `json:"experience_id"`
	ResumeLang   types.ResumeLang     `json:"resume_lang"`
	Topics       []types.RefinedTopic `json:"topics"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// encodeRefined serializes refined topics for a JSONB column; nil encodes as an empty array
func encodeRefined(topics []types.RefinedTopic) ([]byte, error) {
	if topics == nil {
		topics = []types.RefinedTopic{}
	}
	b, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refined topics: %w", err)
	}
	return b, nil
}

// decodeRefined parses a JSONB refined-topic list; an empty column decodes as an empty, non-nil list
func decodeRefined(raw []byte) ([]types.RefinedTopic, error) {
	topics := []types.RefinedTopic{}
	if len(raw) == 0 {
		return topics, nil
	}
	if err := json.Unmarshal(raw, &topics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refined topics: %w", err)
	}
	if topics == nil {
		topics = []types.RefinedTopic{}
	}
	return topics, nil
}

func encodePreTopic(rt types.RefinedTopic) ([]byte, error) {
	if rt.RefinedQuotes == nil {
		rt.RefinedQuotes = []string{}
	}
	b, err := json.Marshal(rt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pre-topic: %w", err)
	}
	return b, nil
}

func decodePreTopic(raw []byte) (types.RefinedTopic, error) {
	var rt types.RefinedTopic
	if len(raw) == 0 {
		return rt, nil
	}
	if err := json.Unmarshal(raw, &rt); err != nil {
		return rt, fmt.Errorf("failed to unmarshal pre-topic: %w", err)
	}
	return rt, nil
}

func persistence(op string, err error) error {
	return &types.PersistenceError{Op: op, Cause: err}
}
