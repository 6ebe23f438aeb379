package types

import (
	"github.com/go-playground/validator/v10"
)

// ActiveGenerations is a snapshot of the jobs currently running for one user
type ActiveGenerations struct {
	GeneratingAllExperienceIDs []int64 `json:"generatingAllExperienceIds"`
	RegeneratingTopicIDs       []int64 `json:"regeneratingTopicIds"`
}

// Empty reports whether no job is in flight
func (a ActiveGenerations) Empty() bool {
	return len(a.GeneratingAllExperienceIDs) == 0 && len(a.RegeneratingTopicIDs) == 0
}

// GenerateAllRequest asks for every topic of an experience to be generated for a career path
type GenerateAllRequest struct {
	ExperienceID int64  `json:"experienceId" validate:"required,gt=0"`
	CareerPathID int64  `json:"careerPathId" validate:"required,gt=0"`
	Lang         string `json:"lang" validate:"required"`
}

// RegenerateRequest asks for a single topic to be regenerated
type RegenerateRequest struct {
	TopicID      int64  `json:"topicId" validate:"required,gt=0"`
	CareerPathID int64  `json:"careerPathId" validate:"required,gt=0"`
	ExperienceID int64  `json:"experienceId" validate:"required,gt=0"`
	Lang         string `json:"lang" validate:"required"`
	UserHint     string `json:"userHint,omitempty" validate:"max=500"`
}

// Validate validates the GenerateAllRequest and returns the parsed language.
func (r *GenerateAllRequest) Validate() (ResumeLang, error) {
	if err := validator.New().Struct(r); err != nil {
		return "", &ValidationError{Message: "invalid generate request", Cause: err}
	}
	return ParseResumeLang(r.Lang)
}

// Validate validates the RegenerateRequest and returns the parsed language.
func (r *RegenerateRequest) Validate() (ResumeLang, error) {
	if err := validator.New().Struct(r); err != nil {
		return "", &ValidationError{Message: "invalid regenerate request", Cause: err}
	}
	return ParseResumeLang(r.Lang)
}
