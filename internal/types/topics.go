// Package types provides type definitions for structured data used throughout the topic generation service.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Workstream is a cluster of raw user-written sentences describing one coherent effort.
// RawQuotes are verbatim substrings of the experience description.
type Workstream struct {
	TopicName string   `json:"topicName"`
	RawQuotes []string `json:"rawQuotes"`
}

// RefinedTopic is a named, quote-grounded rewrite of a Workstream
type RefinedTopic struct {
	RedefinedTopic string   `json:"redefinedTopic"`
	RefinedQuotes  []string `json:"refinedQuotes"`
}

// Topic is the final single-sentence bullet point with provenance back to its RefinedTopic
type Topic struct {
	ID       int64        `json:"id,omitempty"`
	Topic    string       `json:"topic"`
	PreTopic RefinedTopic `json:"preTopic"`
}

// OperationStatus is the terminal outcome of a flow
type OperationStatus string

const (
	StatusInit    OperationStatus = "init"
	StatusSuccess OperationStatus = "success"
	StatusFailed  OperationStatus = "failed"
)

// Terminal reports whether the status is final
func (s OperationStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Experience is the raw user-authored job experience the pipeline reads
type Experience struct {
	ID          int64      `json:"id"`
	UserID      uuid.UUID  `json:"userId"`
	Description string     `json:"description"`
	ResumeLang  ResumeLang `json:"resumeLang"`
}

// CareerPath is a user-defined target role used to steer bullet generation
type CareerPath struct {
	ID          int64     `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// String renders the career path the way prompts expect it
func (c *CareerPath) String() string {
	if c == nil {
		return ""
	}
	if c.Description == "" {
		return c.Title
	}
	return c.Title + ": " + c.Description
}

// StoredTopic is a persisted Topic together with its ownership keys
type StoredTopic struct {
	Topic
	UserID       uuid.UUID `json:"userId"`
	ExperienceID int64     `json:"experienceId"`
	CareerPathID int64     `json:"careerPathId"`
	Ordinal      int       `json:"ordinal"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
