package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/types"
)

type invocation struct {
	Name     string
	Template string
	Vars     map[string]string
}

// fakeInvoker answers structured calls with JSON documents and text calls with strings
type fakeInvoker struct {
	mu     sync.Mutex
	calls  []invocation
	jsonFn func(name string, vars map[string]string) (string, error)
	textFn func(name string, vars map[string]string) (string, error)
}

func (f *fakeInvoker) record(p llm.Prompt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{Name: p.Name, Template: p.Template, Vars: p.Vars})
}

func (f *fakeInvoker) Invoke(_ context.Context, p llm.Prompt, _ llm.Shape, _ llm.ModelTier, out any) error {
	f.record(p)
	if f.jsonFn == nil {
		return errors.New("unexpected structured call: " + p.Name)
	}
	raw, err := f.jsonFn(p.Name, p.Vars)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (f *fakeInvoker) InvokeText(_ context.Context, p llm.Prompt, _ llm.ModelTier) (string, error) {
	f.record(p)
	if f.textFn == nil {
		return "", errors.New("unexpected text call: " + p.Name)
	}
	return f.textFn(p.Name, p.Vars)
}

func (f *fakeInvoker) callsNamed(name string) []invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []invocation
	for _, c := range f.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

type enhancementKey struct {
	user uuid.UUID
	exp  int64
}

type enhancementRecord struct {
	topics []types.RefinedTopic
	lang   types.ResumeLang
	writes int
}

// fakeStore keeps enhanced experiences keyed by (user, experience)
type fakeStore struct {
	mu         sync.Mutex
	records    map[enhancementKey]*enhancementRecord
	byExp      map[int64][]types.RefinedTopic
	upsertErr  error
	getErr     error
	upsertHits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[enhancementKey]*enhancementRecord),
		byExp:   make(map[int64][]types.RefinedTopic),
	}
}

func (s *fakeStore) GetEnhancedExperience(_ context.Context, expID int64) ([]types.RefinedTopic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	topics, ok := s.byExp[expID]
	if !ok {
		return nil, nil
	}
	return topics, nil
}

func (s *fakeStore) UpsertEnhancedExperience(_ context.Context, topics []types.RefinedTopic, userID uuid.UUID, expID int64, lang types.ResumeLang) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertHits++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	key := enhancementKey{user: userID, exp: expID}
	rec, ok := s.records[key]
	if !ok {
		rec = &enhancementRecord{}
		s.records[key] = rec
	}
	rec.topics = topics
	rec.lang = lang
	rec.writes++
	s.byExp[expID] = topics
	return nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
