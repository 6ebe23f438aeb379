package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-topics/internal/types"
)

func TestSchema(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"experiences", "career_paths", "enhanced_experiences", "topics"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, schema, "UNIQUE (user_id, experience_id)")
}

func TestEncodeRefined(t *testing.T) {
	raw, err := encodeRefined(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	raw, err = encodeRefined([]types.RefinedTopic{{RedefinedTopic: "Reporting", RefinedQuotes: []string{"q"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"redefinedTopic":"Reporting","refinedQuotes":["q"]}]`, string(raw))
}

func TestDecodeRefined(t *testing.T) {
	topics, err := decodeRefined(nil)
	require.NoError(t, err)
	assert.NotNil(t, topics)
	assert.Empty(t, topics)

	topics, err = decodeRefined([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, topics)

	topics, err = decodeRefined([]byte(`[{"redefinedTopic":"A","refinedQuotes":["x","y"]}]`))
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "A", topics[0].RedefinedTopic)
	assert.Equal(t, []string{"x", "y"}, topics[0].RefinedQuotes)

	_, err = decodeRefined([]byte(`{not json`))
	assert.Error(t, err)
}

func TestPreTopicRoundTrip(t *testing.T) {
	raw, err := encodePreTopic(types.RefinedTopic{RedefinedTopic: "A"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"redefinedTopic":"A","refinedQuotes":[]}`, string(raw))

	rt, err := decodePreTopic(raw)
	require.NoError(t, err)
	assert.Equal(t, "A", rt.RedefinedTopic)

	rt, err = decodePreTopic(nil)
	require.NoError(t, err)
	assert.Empty(t, rt.RedefinedTopic)
}

func TestPersistenceWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := persistence("upsert enhanced experience", cause)

	var pe *types.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "upsert enhanced experience", pe.Op)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
