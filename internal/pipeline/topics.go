package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/prompts"
	"github.com/jonathan/resume-topics/internal/types"
)

// SingleTopicInput is everything needed to produce one bullet point
type SingleTopicInput struct {
	CareerPath *types.CareerPath
	Topic      types.RefinedTopic
	Lang       types.ResumeLang
	// UserHint adjusts the focus of the bullet, optional
	UserHint string
	// PreviousItem is a sibling bullet to differ from, optional
	PreviousItem string
}

// GenerateSingleTopic turns one refined topic into exactly one bullet sentence for a career path.
func (s *Stages) GenerateSingleTopic(ctx context.Context, in SingleTopicInput) (string, error) {
	template, err := prompts.ForLang(topicsPromptFile, "single-topic", in.Lang)
	if err != nil {
		return "", err
	}

	vars := map[string]string{
		"CareerPath":   in.CareerPath.String(),
		"Topic":        in.Topic.RedefinedTopic,
		"Quotes":       BulletList(in.Topic.RefinedQuotes),
		"UserHint":     "",
		"PreviousItem": "",
	}
	if hint := strings.TrimSpace(in.UserHint); hint != "" {
		t, err := prompts.ForLang(topicsPromptFile, "hint", in.Lang)
		if err != nil {
			return "", err
		}
		vars["UserHint"] = prompts.Format(t, map[string]string{"Hint": hint})
	}
	if prev := strings.TrimSpace(in.PreviousItem); prev != "" {
		t, err := prompts.ForLang(topicsPromptFile, "previous", in.Lang)
		if err != nil {
			return "", err
		}
		vars["PreviousItem"] = prompts.Format(t, map[string]string{"Previous": prev})
	}

	text, err := s.invoker.InvokeText(ctx, llm.Prompt{Name: "single_topic", Template: template, Vars: vars}, llm.TierAdvanced)
	if err != nil {
		return "", err
	}
	return cleanBullet(text)
}

// cleanBullet strips list markers and wrapping quotes and rejects multi-bullet answers
func cleanBullet(text string) (string, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 1 {
		return "", llm.ShapeError(fmt.Sprintf("expected exactly one bullet, got %d lines", len(lines)), nil)
	}

	bullet := lines[0]
	for _, marker := range []string{"- ", "* ", "• "} {
		bullet = strings.TrimPrefix(bullet, marker)
	}
	if len(bullet) >= 2 && strings.HasPrefix(bullet, `"`) && strings.HasSuffix(bullet, `"`) {
		bullet = bullet[1 : len(bullet)-1]
	}
	bullet = strings.TrimSpace(bullet)
	if bullet == "" {
		return "", llm.ShapeError("bullet is empty", nil)
	}
	return bullet, nil
}

// Check loads the stored enhancement of the experience. An experience that was never enhanced
// cannot produce topics.
func (s *Stages) Check(ctx context.Context, st State) (State, error) {
	if st.ExpID <= 0 {
		return State{}, &types.ValidationError{Field: "experienceId", Message: "experience id is required"}
	}
	if st.CareerPath == nil {
		return State{}, &types.ValidationError{Field: "careerPathId", Message: "career path is required"}
	}

	refined, err := s.store.GetEnhancedExperience(ctx, st.ExpID)
	if err != nil {
		return State{}, err
	}
	if refined == nil {
		return State{}, &types.ValidationError{
			Field:   "experienceId",
			Message: "experience " + strconv.FormatInt(st.ExpID, 10) + " has no enhanced topics",
		}
	}
	return State{WriterRedefinedTopics: refined}, nil
}

// GenerateTopics produces one bullet per refined topic. Bullets are generated in order so each one
// sees its predecessor as the sibling to differ from.
func (s *Stages) GenerateTopics(ctx context.Context, st State) (State, error) {
	topics := make([]types.Topic, 0, len(st.WriterRedefinedTopics))
	previous := ""
	for i, rt := range st.WriterRedefinedTopics {
		text, err := s.GenerateSingleTopic(ctx, SingleTopicInput{
			CareerPath:   st.CareerPath,
			Topic:        rt,
			Lang:         st.ResumeLang,
			PreviousItem: previous,
		})
		if err != nil {
			return State{}, fmt.Errorf("topic %d (%s): %w", i, rt.RedefinedTopic, err)
		}
		topics = append(topics, types.Topic{Topic: text, PreTopic: rt})
		previous = text
	}
	return State{Topics: topics}, nil
}

type topicListResponse struct {
	Topics []string `json:"topics"`
}

// Unify rewrites the batch for varied openers and a neutral tone. Cardinality and order must be
// preserved; anything else is a non-conforming result.
func (s *Stages) Unify(ctx context.Context, st State) (State, error) {
	if len(st.Topics) == 0 {
		return State{Topics: []types.Topic{}, OperationStatus: types.StatusSuccess}, nil
	}

	template, err := prompts.ForLang(topicsPromptFile, "unify", st.ResumeLang)
	if err != nil {
		return State{}, err
	}

	texts := make([]string, len(st.Topics))
	for i, t := range st.Topics {
		texts[i] = t.Topic
	}
	encoded, err := json.Marshal(texts)
	if err != nil {
		return State{}, fmt.Errorf("failed to encode topics: %w", err)
	}

	var resp topicListResponse
	prompt := llm.Prompt{
		Name:     "unify",
		Template: template,
		Vars: map[string]string{
			"Count":  strconv.Itoa(len(texts)),
			"Topics": string(encoded),
		},
	}
	if err := s.invoker.Invoke(ctx, prompt, llm.TopicListShape, llm.TierStandard, &resp); err != nil {
		return State{}, err
	}
	if len(resp.Topics) != len(st.Topics) {
		return State{}, llm.ShapeError(fmt.Sprintf("unify returned %d topics for %d inputs", len(resp.Topics), len(st.Topics)), nil)
	}

	unified := make([]types.Topic, len(st.Topics))
	for i, t := range st.Topics {
		text := strings.TrimSpace(resp.Topics[i])
		if text == "" {
			return State{}, llm.ShapeError(fmt.Sprintf("unify returned an empty topic at position %d", i), nil)
		}
		unified[i] = types.Topic{ID: t.ID, Topic: text, PreTopic: t.PreTopic}
	}
	return State{Topics: unified, OperationStatus: types.StatusSuccess}, nil
}
