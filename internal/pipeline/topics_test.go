package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/types"
)

var dataEngineer = &types.CareerPath{ID: 1, Title: "Data Engineer", Description: "Batch and streaming pipelines"}

var reportingTopic = types.RefinedTopic{
	RedefinedTopic: "Reporting Automation",
	RefinedQuotes:  []string{"reduced manual report generation from 3 hours to 5 minutes"},
}

func TestGenerateSingleTopic_WithHint(t *testing.T) {
	inv := &fakeInvoker{textFn: func(name string, vars map[string]string) (string, error) {
		assert.Equal(t, "single_topic", name)
		assert.Equal(t, "Data Engineer: Batch and streaming pipelines", vars["CareerPath"])
		assert.Equal(t, "Reporting Automation", vars["Topic"])
		assert.Equal(t, "- reduced manual report generation from 3 hours to 5 minutes", vars["Quotes"])
		assert.Contains(t, vars["UserHint"], "emphasize time savings")
		assert.Empty(t, vars["PreviousItem"])
		return "- Reduced manual report generation from 3 hours to 5 minutes.\n", nil
	}}
	stages := NewStages(inv, newFakeStore(), nil)

	text, err := stages.GenerateSingleTopic(context.Background(), SingleTopicInput{
		CareerPath: dataEngineer,
		Topic:      reportingTopic,
		Lang:       types.LangEN,
		UserHint:   "emphasize time savings",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reduced manual report generation from 3 hours to 5 minutes.", text)

	// every placeholder is substituted
	rendered := llm.Prompt{Template: inv.calls[0].Template, Vars: inv.calls[0].Vars}.Render()
	assert.NotContains(t, rendered, "{{.")
}

func TestGenerateSingleTopic_PortugueseHintAndPrevious(t *testing.T) {
	inv := &fakeInvoker{textFn: func(_ string, vars map[string]string) (string, error) {
		assert.Contains(t, vars["UserHint"], "Orientação")
		assert.Contains(t, vars["PreviousItem"], "Automatizou relatórios")
		return `"Reduziu o tempo de geração de relatórios."`, nil
	}}
	stages := NewStages(inv, newFakeStore(), nil)

	text, err := stages.GenerateSingleTopic(context.Background(), SingleTopicInput{
		CareerPath:   dataEngineer,
		Topic:        reportingTopic,
		Lang:         types.LangPT,
		UserHint:     "foco em tempo",
		PreviousItem: "Automatizou relatórios",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reduziu o tempo de geração de relatórios.", text)
}

func TestGenerateSingleTopic_MultipleBulletsIsShapeError(t *testing.T) {
	inv := &fakeInvoker{textFn: func(string, map[string]string) (string, error) {
		return "- first bullet\n- second bullet", nil
	}}
	stages := NewStages(inv, newFakeStore(), nil)

	_, err := stages.GenerateSingleTopic(context.Background(), SingleTopicInput{CareerPath: dataEngineer, Topic: reportingTopic, Lang: types.LangEN})
	assert.True(t, llm.IsShapeError(err))
}

func TestCheck(t *testing.T) {
	store := newFakeStore()
	store.byExp[5] = []types.RefinedTopic{reportingTopic}
	stages := NewStages(&fakeInvoker{}, store, nil)

	patch, err := stages.Check(context.Background(), State{ExpID: 5, CareerPath: dataEngineer})
	require.NoError(t, err)
	assert.Equal(t, []types.RefinedTopic{reportingTopic}, patch.WriterRedefinedTopics)
}

func TestCheck_MissingEnhancement(t *testing.T) {
	stages := NewStages(&fakeInvoker{}, newFakeStore(), nil)

	_, err := stages.Check(context.Background(), State{ExpID: 5, CareerPath: dataEngineer})
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "experienceId", ve.Field)
}

func TestCheck_RequiresCareerPath(t *testing.T) {
	stages := NewStages(&fakeInvoker{}, newFakeStore(), nil)

	_, err := stages.Check(context.Background(), State{ExpID: 5})
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "careerPathId", ve.Field)
}

func TestCheck_StoreError(t *testing.T) {
	store := newFakeStore()
	store.getErr = &types.PersistenceError{Op: "get enhanced experience", Cause: errors.New("timeout")}
	stages := NewStages(&fakeInvoker{}, store, nil)

	_, err := stages.Check(context.Background(), State{ExpID: 5, CareerPath: dataEngineer})
	var pe *types.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestGenerateTopics_PassesPreviousSibling(t *testing.T) {
	inv := &fakeInvoker{textFn: func(_ string, vars map[string]string) (string, error) {
		return "Bullet for " + vars["Topic"], nil
	}}
	stages := NewStages(inv, newFakeStore(), nil)

	refined := []types.RefinedTopic{
		{RedefinedTopic: "One", RefinedQuotes: []string{"a"}},
		{RedefinedTopic: "Two", RefinedQuotes: []string{"b"}},
		{RedefinedTopic: "Three", RefinedQuotes: []string{"c"}},
	}
	patch, err := stages.GenerateTopics(context.Background(), State{
		WriterRedefinedTopics: refined,
		CareerPath:            dataEngineer,
		ResumeLang:            types.LangEN,
	})
	require.NoError(t, err)
	require.Len(t, patch.Topics, 3)
	for i, topic := range patch.Topics {
		assert.Equal(t, refined[i], topic.PreTopic)
		assert.Equal(t, "Bullet for "+refined[i].RedefinedTopic, topic.Topic)
	}

	calls := inv.callsNamed("single_topic")
	require.Len(t, calls, 3)
	assert.Empty(t, calls[0].Vars["PreviousItem"])
	assert.Contains(t, calls[1].Vars["PreviousItem"], "Bullet for One")
	assert.Contains(t, calls[2].Vars["PreviousItem"], "Bullet for Two")
}

func TestGenerateTopics_Empty(t *testing.T) {
	inv := &fakeInvoker{}
	stages := NewStages(inv, newFakeStore(), nil)

	patch, err := stages.GenerateTopics(context.Background(), State{WriterRedefinedTopics: []types.RefinedTopic{}, CareerPath: dataEngineer})
	require.NoError(t, err)
	assert.NotNil(t, patch.Topics)
	assert.Empty(t, patch.Topics)
	assert.Empty(t, inv.calls)
}

func TestUnify_PreservesOrderAndProvenance(t *testing.T) {
	inv := &fakeInvoker{jsonFn: func(name string, vars map[string]string) (string, error) {
		assert.Equal(t, "unify", name)
		assert.Equal(t, "2", vars["Count"])
		assert.Equal(t, `["Spearheaded A","Spearheaded B"]`, vars["Topics"])
		return `{"topics": ["Led A", "Built B"]}`, nil
	}}
	stages := NewStages(inv, newFakeStore(), nil)

	in := []types.Topic{
		{Topic: "Spearheaded A", PreTopic: types.RefinedTopic{RedefinedTopic: "A"}},
		{Topic: "Spearheaded B", PreTopic: types.RefinedTopic{RedefinedTopic: "B"}},
	}
	patch, err := stages.Unify(context.Background(), State{Topics: in, ResumeLang: types.LangEN})
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, patch.OperationStatus)
	require.Len(t, patch.Topics, 2)
	assert.Equal(t, "Led A", patch.Topics[0].Topic)
	assert.Equal(t, "A", patch.Topics[0].PreTopic.RedefinedTopic)
	assert.Equal(t, "Built B", patch.Topics[1].Topic)
	assert.Equal(t, "B", patch.Topics[1].PreTopic.RedefinedTopic)
}

func TestUnify_CardinalityMismatchIsShapeError(t *testing.T) {
	inv := &fakeInvoker{jsonFn: func(string, map[string]string) (string, error) {
		return `{"topics": ["only one"]}`, nil
	}}
	stages := NewStages(inv, newFakeStore(), nil)

	_, err := stages.Unify(context.Background(), State{
		Topics:     []types.Topic{{Topic: "a"}, {Topic: "b"}},
		ResumeLang: types.LangEN,
	})
	require.Error(t, err)
	assert.True(t, llm.IsShapeError(err))
	assert.True(t, strings.Contains(err.Error(), "1 topics for 2 inputs"))
}

func TestUnify_BlankTopicIsShapeError(t *testing.T) {
	inv := &fakeInvoker{jsonFn: func(string, map[string]string) (string, error) {
		return `{"topics": ["Led A", " \n "]}`, nil
	}}
	stages := NewStages(inv, newFakeStore(), nil)

	patch, err := stages.Unify(context.Background(), State{
		Topics:     []types.Topic{{Topic: "a"}, {Topic: "b"}},
		ResumeLang: types.LangEN,
	})
	require.Error(t, err)
	assert.True(t, llm.IsShapeError(err))
	assert.Contains(t, err.Error(), "empty topic at position 1")
	assert.Empty(t, patch.Topics)
}

func TestUnify_EmptyBatch(t *testing.T) {
	inv := &fakeInvoker{}
	stages := NewStages(inv, newFakeStore(), nil)

	patch, err := stages.Unify(context.Background(), State{Topics: []types.Topic{}})
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, patch.OperationStatus)
	assert.Empty(t, inv.calls)
}
