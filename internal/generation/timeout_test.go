package generation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/pipeline"
	"github.com/jonathan/resume-topics/internal/tracker"
	"github.com/jonathan/resume-topics/internal/types"
)

// hangingClient never answers until its context is done
type hangingClient struct{}

func (hangingClient) GenerateContent(ctx context.Context, _ string, _ llm.ModelTier) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (hangingClient) GenerateJSON(ctx context.Context, _ string, _ llm.ModelTier) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (hangingClient) GetModel(llm.ModelTier) string { return "hanging" }

func (hangingClient) Close() error { return nil }

type noEnhancementStore struct{}

func (noEnhancementStore) GetEnhancedExperience(context.Context, int64) ([]types.RefinedTopic, error) {
	return nil, nil
}

func (noEnhancementStore) UpsertEnhancedExperience(context.Context, []types.RefinedTopic, uuid.UUID, int64, types.ResumeLang) error {
	return nil
}

func TestStartGenerateAll_InvokerTimeout(t *testing.T) {
	invoker := llm.NewInvoker(hangingClient{}, 25*time.Millisecond)
	stages := pipeline.NewStages(invoker, noEnhancementStore{}, nil)
	flows, err := pipeline.NewFlows(stages, nil)
	require.NoError(t, err)

	store := newFakeStore()
	user := uuid.New()
	store.experiences[1] = &types.Experience{ID: 1, UserID: user, Description: "Built a reporting pipeline.", ResumeLang: types.LangEN}
	store.paths[2] = &types.CareerPath{ID: 2, UserID: user, Title: "Data Engineer"}

	settled := newSettledRecorder()
	tr := tracker.New(tracker.NewMemoryStore())
	svc := New(store, flows, stages, tr, OnSettled(settled.record))

	_, err = svc.StartGenerateAll(context.Background(), user, types.GenerateAllRequest{ExperienceID: 1, CareerPathID: 2, Lang: "EN"})
	require.NoError(t, err)

	job := settled.wait(t)
	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "timeout")

	active, err := tr.ActiveGenerations(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, active.Empty())
	assert.Zero(t, store.replaced)
}
