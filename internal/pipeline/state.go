// Package pipeline provides the stage functions and the two flows of the topic generation process:
// enhance (architect, writer, saver) and topics (check, generate_topics, unify).
package pipeline

import (
	"github.com/google/uuid"

	"github.com/jonathan/resume-topics/internal/types"
)

// State is threaded through one flow run. Stages return a patch holding only the fields they set;
// zero values mean "absent" and leave the accumulated value untouched.
type State struct {
	UserSummary string
	ResumeLang  types.ResumeLang
	UserID      uuid.UUID
	ExpID       int64
	CareerPath  *types.CareerPath

	Workstreams           []types.Workstream
	WriterRedefinedTopics []types.RefinedTopic
	Topics                []types.Topic

	OperationStatus types.OperationStatus
	Error           string
}

// Merge applies patch over base field by field, last write wins.
// Lists are replaced wholesale; a non-nil empty list counts as a value.
func Merge(base, patch State) State {
	if patch.UserSummary != "" {
		base.UserSummary = patch.UserSummary
	}
	if patch.ResumeLang != "" {
		base.ResumeLang = patch.ResumeLang
	}
	if patch.UserID != uuid.Nil {
		base.UserID = patch.UserID
	}
	if patch.ExpID != 0 {
		base.ExpID = patch.ExpID
	}
	if patch.CareerPath != nil {
		base.CareerPath = patch.CareerPath
	}
	if patch.Workstreams != nil {
		base.Workstreams = patch.Workstreams
	}
	if patch.WriterRedefinedTopics != nil {
		base.WriterRedefinedTopics = patch.WriterRedefinedTopics
	}
	if patch.Topics != nil {
		base.Topics = patch.Topics
	}
	if patch.OperationStatus != "" {
		base.OperationStatus = patch.OperationStatus
	}
	if patch.Error != "" {
		base.Error = patch.Error
	}
	return base
}
