// Package generation runs "generate all" and "regenerate one" jobs: it validates requests,
// registers jobs in the tracker, runs the flows and persists their results.
package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/logger"
	"github.com/jonathan/resume-topics/internal/pipeline"
	"github.com/jonathan/resume-topics/internal/pipeline/steps"
	"github.com/jonathan/resume-topics/internal/tracker"
	"github.com/jonathan/resume-topics/internal/types"
)

const untrackTimeout = 5 * time.Second

// Store is the part of the experience record store jobs read and write
type Store interface {
	GetExperience(ctx context.Context, id int64) (*types.Experience, error)
	GetCareerPath(ctx context.Context, id int64, userID uuid.UUID) (*types.CareerPath, error)
	ReplaceTopics(ctx context.Context, userID uuid.UUID, expID, careerPathID int64, topics []types.Topic) ([]types.StoredTopic, error)
	GetTopic(ctx context.Context, id int64) (*types.StoredTopic, error)
	ListTopics(ctx context.Context, userID uuid.UUID, expID, careerPathID int64) ([]types.StoredTopic, error)
	UpdateTopic(ctx context.Context, id int64, text string) (*types.StoredTopic, error)
}

// Flows runs the enhance and topics flows
type Flows interface {
	RunEnhance(ctx context.Context, initial pipeline.State) (pipeline.State, error)
	RunTopics(ctx context.Context, initial pipeline.State) (pipeline.State, error)
}

// TopicGenerator produces a single bullet
type TopicGenerator interface {
	GenerateSingleTopic(ctx context.Context, in pipeline.SingleTopicInput) (string, error)
}

// Metrics records settled jobs
type Metrics interface {
	JobFinished(kind string, status string, elapsed time.Duration)
}

// Service orchestrates generation jobs
type Service struct {
	store     Store
	flows     Flows
	generator TopicGenerator
	tracker   *tracker.Tracker
	log       *logger.Logger
	metrics   Metrics
	onSettled func(Job)
	heartbeat time.Duration

	baseCtx context.Context
	wg      sync.WaitGroup
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = logger.OrNop(l) }
}

// WithMetrics sets the job metrics recorder
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBaseContext sets the context detached jobs run under. Cancelling it cancels every detached job.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Service) { s.baseCtx = ctx }
}

// WithHeartbeat refreshes a running job's tracker entry every d so it cannot expire mid-job.
// Non-positive values disable refreshing.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Service) { s.heartbeat = d }
}

// OnSettled installs a callback invoked once per job after it succeeds or fails
func OnSettled(fn func(Job)) Option {
	return func(s *Service) { s.onSettled = fn }
}

// New creates a generation service
func New(store Store, flows Flows, generator TopicGenerator, tr *tracker.Tracker, opts ...Option) *Service {
	s := &Service{
		store:     store,
		flows:     flows,
		generator: generator,
		tracker:   tr,
		log:       logger.Nop(),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActiveGenerations returns the tracker snapshot for a user
func (s *Service) ActiveGenerations(ctx context.Context, userID uuid.UUID) (types.ActiveGenerations, error) {
	return s.tracker.ActiveGenerations(ctx, userID)
}

// ListTopics returns the stored topics of (user, experience, career path)
func (s *Service) ListTopics(ctx context.Context, userID uuid.UUID, expID, careerPathID int64) ([]types.Topic, error) {
	stored, err := s.store.ListTopics(ctx, userID, expID, careerPathID)
	if err != nil {
		return nil, err
	}
	return toTopics(stored), nil
}

// Wait blocks until every detached job has settled or ctx is done
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -----------------------------------------------------------------------------
// Generate All
// -----------------------------------------------------------------------------

type generateAllJob struct {
	job  *Job
	exp  *types.Experience
	path *types.CareerPath
	lang types.ResumeLang
}

// GenerateAll runs enhance then topics for an experience and returns the stored topic list.
func (s *Service) GenerateAll(ctx context.Context, userID uuid.UUID, req types.GenerateAllRequest) ([]types.Topic, error) {
	j, err := s.prepareGenerateAll(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return s.executeGenerateAll(ctx, j)
}

// StartGenerateAll registers the job and runs it detached from ctx. The job is tracked before this returns.
func (s *Service) StartGenerateAll(ctx context.Context, userID uuid.UUID, req types.GenerateAllRequest) (*Job, error) {
	j, err := s.prepareGenerateAll(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.executeGenerateAll(s.baseCtx, j)
	}()
	return j.job, nil
}

func (s *Service) prepareGenerateAll(ctx context.Context, userID uuid.UUID, req types.GenerateAllRequest) (*generateAllJob, error) {
	lang, err := req.Validate()
	if err != nil {
		return nil, err
	}

	exp, err := s.store.GetExperience(ctx, req.ExperienceID)
	if err != nil {
		return nil, err
	}
	if exp == nil || exp.UserID != userID {
		return nil, &types.NotFoundError{Resource: "experience", ID: req.ExperienceID}
	}
	if strings.TrimSpace(exp.Description) == "" {
		return nil, &types.ValidationError{Field: "userSummary", Message: "experience text is empty"}
	}

	path, err := s.store.GetCareerPath(ctx, req.CareerPathID, userID)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, &types.NotFoundError{Resource: "career path", ID: req.CareerPathID}
	}

	added, err := s.tracker.TrackGenerateAll(ctx, userID, exp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to track job: %w", err)
	}
	if !added {
		return nil, &ConflictError{Kind: KindGenerateAll, ID: exp.ID}
	}

	return &generateAllJob{
		job:  newJob(KindGenerateAll, userID, exp.ID),
		exp:  exp,
		path: path,
		lang: lang,
	}, nil
}

func (s *Service) executeGenerateAll(ctx context.Context, j *generateAllJob) (topics []types.Topic, err error) {
	defer func() {
		s.untrack(ctx, j.job, func(c context.Context) error {
			return s.tracker.UntrackGenerateAll(c, j.job.UserID, j.job.TargetID)
		})
		s.settle(*j.job, err)
	}()
	defer s.keepAlive(ctx, j.job, tracker.KindGenerateAll)()

	log := s.log.With("jobId", j.job.ID, "kind", j.job.Kind, "experienceId", j.exp.ID)
	log.Info("generate all started", "careerPathId", j.path.ID, "lang", j.lang)

	enhanced, err := s.flows.RunEnhance(ctx, pipeline.State{
		UserSummary: j.exp.Description,
		ResumeLang:  j.lang,
		UserID:      j.job.UserID,
		ExpID:       j.exp.ID,
	})
	if err != nil {
		return nil, err
	}
	if enhanced.OperationStatus != types.StatusSuccess {
		return nil, &FlowError{Flow: steps.FlowEnhance, Status: enhanced.OperationStatus, Message: enhanced.Error}
	}

	final, err := s.flows.RunTopics(ctx, pipeline.State{
		ResumeLang: j.lang,
		UserID:     j.job.UserID,
		ExpID:      j.exp.ID,
		CareerPath: j.path,
	})
	if err != nil {
		return nil, err
	}
	if final.OperationStatus != types.StatusSuccess {
		return nil, &FlowError{Flow: steps.FlowTopics, Status: final.OperationStatus, Message: final.Error}
	}

	stored, err := s.store.ReplaceTopics(ctx, j.job.UserID, j.exp.ID, j.path.ID, final.Topics)
	if err != nil {
		return nil, err
	}
	return toTopics(stored), nil
}

// -----------------------------------------------------------------------------
// Regenerate One
// -----------------------------------------------------------------------------

type regenerateJob struct {
	job      *Job
	topic    *types.StoredTopic
	path     *types.CareerPath
	lang     types.ResumeLang
	userHint string
}

// RegenerateOne regenerates a single stored topic, optionally steered by a user hint.
func (s *Service) RegenerateOne(ctx context.Context, userID uuid.UUID, req types.RegenerateRequest) (*types.Topic, error) {
	j, err := s.prepareRegenerate(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return s.executeRegenerate(ctx, j)
}

// StartRegenerate registers the job and runs it detached from ctx.
func (s *Service) StartRegenerate(ctx context.Context, userID uuid.UUID, req types.RegenerateRequest) (*Job, error) {
	j, err := s.prepareRegenerate(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.executeRegenerate(s.baseCtx, j)
	}()
	return j.job, nil
}

func (s *Service) prepareRegenerate(ctx context.Context, userID uuid.UUID, req types.RegenerateRequest) (*regenerateJob, error) {
	lang, err := req.Validate()
	if err != nil {
		return nil, err
	}

	topic, err := s.store.GetTopic(ctx, req.TopicID)
	if err != nil {
		return nil, err
	}
	if topic == nil || topic.UserID != userID {
		return nil, &types.NotFoundError{Resource: "topic", ID: req.TopicID}
	}
	if topic.ExperienceID != req.ExperienceID {
		return nil, &types.ValidationError{Field: "experienceId", Message: "topic does not belong to the experience"}
	}
	if topic.CareerPathID != req.CareerPathID {
		return nil, &types.ValidationError{Field: "careerPathId", Message: "topic does not belong to the career path"}
	}

	path, err := s.store.GetCareerPath(ctx, req.CareerPathID, userID)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, &types.NotFoundError{Resource: "career path", ID: req.CareerPathID}
	}

	added, err := s.tracker.TrackRegenerate(ctx, userID, topic.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to track job: %w", err)
	}
	if !added {
		return nil, &ConflictError{Kind: KindRegenerate, ID: topic.ID}
	}

	return &regenerateJob{
		job:      newJob(KindRegenerate, userID, topic.ID),
		topic:    topic,
		path:     path,
		lang:     lang,
		userHint: req.UserHint,
	}, nil
}

func (s *Service) executeRegenerate(ctx context.Context, j *regenerateJob) (topic *types.Topic, err error) {
	defer func() {
		s.untrack(ctx, j.job, func(c context.Context) error {
			return s.tracker.UntrackRegenerate(c, j.job.UserID, j.job.TargetID)
		})
		s.settle(*j.job, err)
	}()
	defer s.keepAlive(ctx, j.job, tracker.KindRegenerate)()

	s.log.Info("regenerate started", "jobId", j.job.ID, "topicId", j.topic.ID, "hint", j.userHint != "")

	previous, err := s.previousSibling(ctx, j.topic)
	if err != nil {
		return nil, err
	}

	text, err := s.generator.GenerateSingleTopic(ctx, pipeline.SingleTopicInput{
		CareerPath:   j.path,
		Topic:        j.topic.PreTopic,
		Lang:         j.lang,
		UserHint:     j.userHint,
		PreviousItem: previous,
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTopic(ctx, j.topic.ID, text)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, &types.NotFoundError{Resource: "topic", ID: j.topic.ID}
	}
	return &updated.Topic, nil
}

// previousSibling returns the text of the topic stored just before t, or "" for the first one
func (s *Service) previousSibling(ctx context.Context, t *types.StoredTopic) (string, error) {
	siblings, err := s.store.ListTopics(ctx, t.UserID, t.ExperienceID, t.CareerPathID)
	if err != nil {
		return "", err
	}
	previous := ""
	for _, sib := range siblings {
		if sib.ID == t.ID {
			return previous, nil
		}
		previous = sib.Topic.Topic
	}
	return "", nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// untrack removes the tracker entry even when ctx is already cancelled
func (s *Service) untrack(ctx context.Context, job *Job, remove func(context.Context) error) {
	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), untrackTimeout)
	defer cancel()
	if err := remove(c); err != nil {
		s.log.Error("failed to untrack job", "jobId", job.ID, "kind", job.Kind, "targetId", job.TargetID, "error", err)
	}
}

// keepAlive refreshes the job's tracker set until the returned stop func is called
func (s *Service) keepAlive(ctx context.Context, job *Job, kind tracker.Kind) (stop func()) {
	if s.heartbeat <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := s.tracker.Refresh(ctx, kind, job.UserID); err != nil && ctx.Err() == nil {
				s.log.Warn("failed to refresh tracker entry", "jobId", job.ID, "kind", job.Kind, "error", err)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Service) settle(job Job, err error) {
	done := job.settled(err)
	if err != nil {
		s.log.Warn("generation job failed", "jobId", done.ID, "kind", done.Kind, "targetId", done.TargetID,
			"elapsed", done.Elapsed(), "error", err)
	} else {
		s.log.Info("generation job succeeded", "jobId", done.ID, "kind", done.Kind, "targetId", done.TargetID,
			"elapsed", done.Elapsed())
	}
	if s.metrics != nil {
		s.metrics.JobFinished(string(done.Kind), string(done.Status), done.Elapsed())
	}
	if s.onSettled != nil {
		s.onSettled(done)
	}
}

func toTopics(stored []types.StoredTopic) []types.Topic {
	topics := make([]types.Topic, len(stored))
	for i, st := range stored {
		topics[i] = st.Topic
	}
	return topics
}
