package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/prompts"
	"github.com/jonathan/resume-topics/internal/types"
)

type workstreamsResponse struct {
	Workstreams []types.Workstream `json:"workstreams"`
}

// Architect clusters the raw experience text into workstreams with verbatim supporting quotes.
func (s *Stages) Architect(ctx context.Context, st State) (State, error) {
	if strings.TrimSpace(st.UserSummary) == "" {
		return State{}, &types.ValidationError{Field: "userSummary", Message: "experience text is empty"}
	}

	template, err := prompts.ForLang(enhancePromptFile, "architect", st.ResumeLang)
	if err != nil {
		return State{}, err
	}

	var resp workstreamsResponse
	prompt := llm.Prompt{
		Name:     "architect",
		Template: template,
		Vars:     map[string]string{"UserSummary": st.UserSummary},
	}
	if err := s.invoker.Invoke(ctx, prompt, llm.WorkstreamsShape, llm.TierAdvanced, &resp); err != nil {
		return State{}, err
	}

	if err := ValidateQuotes(st.UserSummary, resp.Workstreams); err != nil {
		return State{}, llm.ShapeError("architect returned paraphrased quotes", err)
	}

	workstreams := resp.Workstreams
	if workstreams == nil {
		workstreams = []types.Workstream{}
	}
	s.log.Debug("architect produced workstreams", "expId", st.ExpID, "count", len(workstreams))
	return State{Workstreams: workstreams}, nil
}

// Writer refines every workstream concurrently. The output keeps the input order; any failed
// invocation fails the whole stage.
func (s *Stages) Writer(ctx context.Context, st State) (State, error) {
	if len(st.Workstreams) == 0 {
		return State{WriterRedefinedTopics: []types.RefinedTopic{}}, nil
	}

	template, err := prompts.ForLang(enhancePromptFile, "writer", st.ResumeLang)
	if err != nil {
		return State{}, err
	}

	refined := make([]types.RefinedTopic, len(st.Workstreams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.writerLimit)

	for i, ws := range st.Workstreams {
		g.Go(func() error {
			prompt := llm.Prompt{
				Name:     "writer",
				Template: template,
				Vars: map[string]string{
					"TopicName": ws.TopicName,
					"Quotes":    BulletList(ws.RawQuotes),
				},
			}
			if err := s.invoker.Invoke(gctx, prompt, llm.RefinedTopicShape, llm.TierStandard, &refined[i]); err != nil {
				return fmt.Errorf("workstream %d (%s): %w", i, ws.TopicName, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return State{}, err
	}
	return State{WriterRedefinedTopics: refined}, nil
}

// Saver upserts the refined topics for (user, experience). Store failures become a failed
// status and message instead of an error.
func (s *Stages) Saver(ctx context.Context, st State) (State, error) {
	topics := st.WriterRedefinedTopics
	if topics == nil {
		topics = []types.RefinedTopic{}
	}

	if err := s.store.UpsertEnhancedExperience(ctx, topics, st.UserID, st.ExpID, st.ResumeLang.Normalize()); err != nil {
		s.log.Warn("failed to save enhanced experience", "expId", st.ExpID, "error", err)
		msg := err.Error()
		if msg == "" {
			msg = "failed to save enhanced experience"
		}
		return State{OperationStatus: types.StatusFailed, Error: msg}, nil
	}
	return State{OperationStatus: types.StatusSuccess}, nil
}

// BulletList prefixes every line with a bullet marker and joins them with newlines
func BulletList(lines []string) string {
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(line)
	}
	return sb.String()
}
