package pipeline

import (
	"context"
	"runtime"

	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/llm"
	"github.com/jonathan/resume-topics/internal/logger"
	"github.com/jonathan/resume-topics/internal/types"
)

const (
	enhancePromptFile = "enhance.json"
	topicsPromptFile  = "topics.json"
)

// Invoker runs structured and plain-text model calls
type Invoker interface {
	Invoke(ctx context.Context, p llm.Prompt, shape llm.Shape, tier llm.ModelTier, out any) error
	InvokeText(ctx context.Context, p llm.Prompt, tier llm.ModelTier) (string, error)
}

// Store is the part of the experience record store the stages read and write
type Store interface {
	GetEnhancedExperience(ctx context.Context, expID int64) ([]types.RefinedTopic, error)
	UpsertEnhancedExperience(ctx context.Context, topics []types.RefinedTopic, userID uuid.UUID, expID int64, lang types.ResumeLang) error
}

// Stages holds the dependencies shared by every stage function
type Stages struct {
	invoker     Invoker
	store       Store
	log         *logger.Logger
	writerLimit int
}

// Option configures Stages
type Option func(*Stages)

// WithWriterConcurrency bounds the number of concurrent writer invocations
func WithWriterConcurrency(n int) Option {
	return func(s *Stages) {
		if n > 0 {
			s.writerLimit = n
		}
	}
}

// NewStages creates the stage functions over an invoker and a store
func NewStages(invoker Invoker, store Store, log *logger.Logger, opts ...Option) *Stages {
	s := &Stages{
		invoker:     invoker,
		store:       store,
		log:         logger.OrNop(log),
		writerLimit: max(4, runtime.NumCPU()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
