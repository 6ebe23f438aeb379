package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/resume-topics/internal/server/middleware"
	"github.com/jonathan/resume-topics/internal/types"
)

// maxBodyBytes caps request bodies; generation requests are a few small fields
const maxBodyBytes = 64 << 10

// GenerateAllBody is the request body for POST /experiences/{id}/generate
type GenerateAllBody struct {
	CareerPathID int64  `json:"careerPathId"`
	Lang         string `json:"lang"`
}

// RegenerateBody is the request body for POST /topics/{id}/regenerate
type RegenerateBody struct {
	CareerPathID int64  `json:"careerPathId"`
	ExperienceID int64  `json:"experienceId"`
	Lang         string `json:"lang"`
	UserHint     string `json:"userHint,omitempty"`
}

// TopicsResponse wraps a topic list
type TopicsResponse struct {
	Topics []types.Topic `json:"topics"`
}

// TopicResponse wraps a single topic
type TopicResponse struct {
	Topic *types.Topic `json:"topic"`
}

// handleGenerateAll starts a generate-all job.
// By default it returns 202 with the job descriptor; ?wait=true returns the topics.
func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	expID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body GenerateAllBody
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	wait, err := waitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := types.GenerateAllRequest{ExperienceID: expID, CareerPathID: body.CareerPathID, Lang: body.Lang}

	if wait {
		topics, err := s.generations.GenerateAll(r.Context(), userID, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, TopicsResponse{Topics: topics})
		return
	}

	job, err := s.generations.StartGenerateAll(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, job)
}

// handleRegenerate starts a single-topic regeneration job
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	topicID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body RegenerateBody
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	wait, err := waitParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := types.RegenerateRequest{
		TopicID:      topicID,
		CareerPathID: body.CareerPathID,
		ExperienceID: body.ExperienceID,
		Lang:         body.Lang,
		UserHint:     body.UserHint,
	}

	if wait {
		topic, err := s.generations.RegenerateOne(r.Context(), userID, req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, TopicResponse{Topic: topic})
		return
	}

	job, err := s.generations.StartRegenerate(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, job)
}

// handleActiveGenerations answers the status query with the caller's in-flight jobs
func (s *Server) handleActiveGenerations(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	snap, err := s.generations.ActiveGenerations(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}

// handleActiveGenerationsStream streams snapshots until nothing is running,
// then sends a complete event and closes.
func (s *Server) handleActiveGenerationsStream(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	stream, err := newStatusStream(w, s.pollInterval)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		snap, err := s.generations.ActiveGenerations(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("status stream query failed", "user_id", userID, "error", err)
				_ = stream.fail("failed to read active generations")
			}
			return
		}
		if snap.Empty() {
			_ = stream.complete(snap)
			return
		}
		if err := stream.snapshot(snap); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleListTopics returns the stored topics for an experience and career path
func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	expID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	careerPathID, err := strconv.ParseInt(r.URL.Query().Get("career_path_id"), 10, 64)
	if err != nil || careerPathID <= 0 {
		s.writeError(w, r, &types.ValidationError{Field: "career_path_id", Message: "must be a positive integer"})
		return
	}

	topics, err := s.generations.ListTopics(r.Context(), userID, expID, careerPathID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, TopicsResponse{Topics: topics})
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &types.ValidationError{Field: name, Message: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}

func waitParam(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return false, nil
	}
	wait, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &types.ValidationError{Field: "wait", Message: fmt.Sprintf("invalid boolean %q", raw)}
	}
	return wait, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &types.ValidationError{Message: "request body is required"}
		}
		return &types.ValidationError{Message: "invalid request body", Cause: err}
	}
	return nil
}
