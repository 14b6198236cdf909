package engine

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	event string
	data  map[string]any
}

func parseFrames(t *testing.T, body string) []frame {
	t.Helper()
	var frames []frame
	for _, raw := range strings.Split(strings.TrimSpace(body), "\n\n") {
		lines := strings.SplitN(raw, "\n", 2)
		require.Len(t, lines, 2, "malformed frame: %q", raw)
		name := strings.TrimPrefix(lines[0], "event: ")
		payload := strings.TrimPrefix(lines[1], "data: ")
		var data map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &data))
		frames = append(frames, frame{event: name, data: data})
	}
	return frames
}

func streamEngine(t *testing.T, llm *stubLLM) *QueryEngine {
	t.Helper()
	cache := NewCache(seededStore(t), &stubEmbedder{}, llm, "")
	qe, err := cache.Engine(context.Background(), ModeStream, 3)
	require.NoError(t, err)
	return qe
}

func TestStreamQueryTokensConcatenateToAnswer(t *testing.T) {
	qe := streamEngine(t, &stubLLM{tokens: []string{"The ", "office ", "opens ", "at nine."}, failAfter: -1})
	rec := httptest.NewRecorder()

	StreamQuery(context.Background(), NewEventWriter(rec), qe, "when does the office open?")

	frames := parseFrames(t, rec.Body.String())
	require.GreaterOrEqual(t, len(frames), 3)

	assert.Equal(t, "start", frames[0].event)
	assert.Equal(t, true, frames[0].data["ok"])

	var concat strings.Builder
	for _, f := range frames[1 : len(frames)-1] {
		require.Equal(t, "token", f.event)
		concat.WriteString(f.data["delta"].(string))
	}

	done := frames[len(frames)-1]
	require.Equal(t, "done", done.event)
	assert.Equal(t, "The office opens at nine.", done.data["answer"])
	assert.Equal(t, concat.String(), done.data["answer"], "tokens must concatenate to the final answer")

	sources, ok := done.data["sources"].([]any)
	require.True(t, ok)
	assert.LessOrEqual(t, len(sources), 5)
}

func TestStreamQueryFailureAfterThreeTokens(t *testing.T) {
	qe := streamEngine(t, &stubLLM{tokens: []string{"a", "b", "c", "d", "e"}, failAfter: 3})
	rec := httptest.NewRecorder()

	StreamQuery(context.Background(), NewEventWriter(rec), qe, "anything")

	frames := parseFrames(t, rec.Body.String())
	require.Len(t, frames, 5) // start + 3 tokens + error

	assert.Equal(t, "start", frames[0].event)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, "token", frames[i].event)
	}
	last := frames[len(frames)-1]
	assert.Equal(t, "error", last.event)
	assert.Contains(t, last.data["message"], "generation failed")

	for _, f := range frames {
		assert.NotEqual(t, "done", f.event, "no done after an error")
	}
}

func TestStreamQueryRetrievalFailureEmitsStartThenError(t *testing.T) {
	cache := NewCache(seededStore(t), &stubEmbedder{shouldError: true}, &stubLLM{failAfter: -1}, "")
	qe, err := cache.Engine(context.Background(), ModeStream, 3)
	require.NoError(t, err)
	rec := httptest.NewRecorder()

	StreamQuery(context.Background(), NewEventWriter(rec), qe, "anything")

	frames := parseFrames(t, rec.Body.String())
	require.Len(t, frames, 2)
	assert.Equal(t, "start", frames[0].event, "start is written before any retrieval work")
	assert.Equal(t, "error", frames[1].event)
}
