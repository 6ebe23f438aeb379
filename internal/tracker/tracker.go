// Package tracker records which generation jobs are in flight for each user.
// Entries are not durable: losing them on restart is equivalent to every job being aborted.
package tracker

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/types"
)

// Kind identifies the job family a set belongs to
type Kind string

const (
	// KindGenerateAll is a "generate all topics of an experience" job, keyed by experience id
	KindGenerateAll Kind = "all"
	// KindRegenerate is a "regenerate one topic" job, keyed by topic id
	KindRegenerate Kind = "topic"
)

// Store is a set-per-key store with atomic add and remove.
type Store interface {
	// Add inserts member and reports whether it was absent
	Add(ctx context.Context, key string, member int64) (bool, error)
	// Remove deletes member; removing an absent member is not an error
	Remove(ctx context.Context, key string, member int64) error
	// Members returns the current members of key. A missing key yields an empty result and is never created.
	Members(ctx context.Context, key string) ([]int64, error)
	// Touch extends the lifetime of key. A missing key stays missing.
	Touch(ctx context.Context, key string) error
}

// Key returns the store key of a user's job set
func Key(kind Kind, userID uuid.UUID) string {
	return fmt.Sprintf("gen:%s:%s", kind, userID)
}

// Tracker registers and reports in-flight generation jobs
type Tracker struct {
	store Store
}

// New creates a tracker over store
func New(store Store) *Tracker {
	return &Tracker{store: store}
}

// TrackGenerateAll registers a generate-all job and reports whether it was newly registered
func (t *Tracker) TrackGenerateAll(ctx context.Context, userID uuid.UUID, experienceID int64) (bool, error) {
	return t.store.Add(ctx, Key(KindGenerateAll, userID), experienceID)
}

// UntrackGenerateAll removes a generate-all job
func (t *Tracker) UntrackGenerateAll(ctx context.Context, userID uuid.UUID, experienceID int64) error {
	return t.store.Remove(ctx, Key(KindGenerateAll, userID), experienceID)
}

// TrackRegenerate registers a regenerate job and reports whether it was newly registered
func (t *Tracker) TrackRegenerate(ctx context.Context, userID uuid.UUID, topicID int64) (bool, error) {
	return t.store.Add(ctx, Key(KindRegenerate, userID), topicID)
}

// UntrackRegenerate removes a regenerate job
func (t *Tracker) UntrackRegenerate(ctx context.Context, userID uuid.UUID, topicID int64) error {
	return t.store.Remove(ctx, Key(KindRegenerate, userID), topicID)
}

// Refresh extends the lifetime of the user's job set of kind while a job of that kind runs
func (t *Tracker) Refresh(ctx context.Context, kind Kind, userID uuid.UUID) error {
	return t.store.Touch(ctx, Key(kind, userID))
}

// ActiveGenerations returns a sorted snapshot of the user's in-flight jobs. Both lists are non-nil.
func (t *Tracker) ActiveGenerations(ctx context.Context, userID uuid.UUID) (types.ActiveGenerations, error) {
	all, err := t.store.Members(ctx, Key(KindGenerateAll, userID))
	if err != nil {
		return types.ActiveGenerations{}, fmt.Errorf("failed to read generate-all jobs: %w", err)
	}
	regen, err := t.store.Members(ctx, Key(KindRegenerate, userID))
	if err != nil {
		return types.ActiveGenerations{}, fmt.Errorf("failed to read regenerate jobs: %w", err)
	}
	return types.ActiveGenerations{
		GeneratingAllExperienceIDs: sortedCopy(all),
		RegeneratingTopicIDs:       sortedCopy(regen),
	}, nil
}

func sortedCopy(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
