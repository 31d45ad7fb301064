package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/courseforge/internal/genai"
	"github.com/dusk-indust/courseforge/internal/outline"
)

// scriptedClient returns canned responses and records every request.
type scriptedClient struct {
	mu       sync.Mutex
	requests []genai.Request
	text     func(req genai.Request) string
	err      error
}

func (c *scriptedClient) Generate(_ context.Context, req genai.Request) (*genai.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	text := "generated"
	if c.text != nil {
		text = c.text(req)
	}
	return &genai.Response{Text: text}, nil
}

func (c *scriptedClient) RenderImage(_ context.Context, req genai.Request) (*genai.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &genai.Response{Binary: []byte{0x89, 0x50}}, nil
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = data
	return nil
}

func testDoc() *outline.Document {
	return &outline.Document{
		Course: "course-x",
		Modules: []outline.Module{
			{
				ID: "01",
				Lessons: []outline.Lesson{
					{ID: "01-01", Title: "One", Topics: []string{"a", "b"}},
					{ID: "01-02", Title: "Two"},
					{ID: "01-03", Title: "Three"},
				},
				Labs: []outline.Lab{{ID: "01-L1", Title: "Lab One", Objective: "do it"}},
			},
		},
	}
}

func testRC() RunContext {
	return NewRunContext("run-1", "course-x", "writer-1", nil, ScopeFull, 0)
}

func TestContentWriter_WritesAllRefs(t *testing.T) {
	client := &scriptedClient{text: func(genai.Request) string {
		return "body [[visual: a diagram]] more"
	}}
	w := NewContentWriter(client, testDoc())

	unit := WorkUnit{ID: "u1", Kind: KindLessonBatch, TargetRefs: []string{"01-01", "01-02"}, Context: testRC()}
	out, err := w.Run(context.Background(), unit, StagePayload{}, nil)
	require.NoError(t, err)

	require.Len(t, out.Entries, 2)
	assert.Empty(t, out.Remaining)
	assert.Equal(t, "01-01", out.Entries[0].TargetRef)
	assert.Equal(t, []string{"a diagram"}, out.Entries[0].VisualTags)
	assert.Contains(t, client.requests[0].Prompt, `"One"`)
	assert.Contains(t, client.requests[0].Prompt, "a, b")
}

func TestContentWriter_YieldsMidBatch(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	guard := newTimeoutGuardClock(100*time.Second, 60*time.Second, clock.now)

	client := &scriptedClient{text: func(genai.Request) string {
		// Each write burns 30s, crossing into the margin after two.
		clock.advance(30 * time.Second)
		return "body"
	}}
	w := NewContentWriter(client, testDoc())

	unit := WorkUnit{ID: "u1", Kind: KindLessonBatch, TargetRefs: []string{"01-01", "01-02", "01-03"}, Context: testRC()}
	out, err := w.Run(context.Background(), unit, StagePayload{}, guard)
	require.NoError(t, err)

	assert.Len(t, out.Entries, 2, "two lessons written before the guard fired")
	assert.Equal(t, []string{"01-03"}, out.Remaining)
}

func TestContentWriter_UnknownRef_Structural(t *testing.T) {
	w := NewContentWriter(&scriptedClient{}, testDoc())
	unit := WorkUnit{ID: "u1", TargetRefs: []string{"99-99"}, Context: testRC()}

	_, err := w.Run(context.Background(), unit, StagePayload{}, nil)
	require.Error(t, err)
	assert.True(t, IsStructural(err))
}

func TestVisualPlanner_AssignsUniqueIDs(t *testing.T) {
	client := &scriptedClient{text: func(req genai.Request) string {
		return "detailed: " + req.Prompt
	}}
	w := NewVisualPlanner(client)

	unit := WorkUnit{ID: "u1", Context: testRC()}
	input := StagePayload{Entries: []ContentEntry{
		{TargetRef: "01-01", VisualTags: []string{"one", "two"}},
		{TargetRef: "01-02", VisualTags: []string{"three"}},
	}}

	out, err := w.Run(context.Background(), unit, input, nil)
	require.NoError(t, err)
	require.Len(t, out.Visuals, 3)

	ids := map[int]bool{}
	for _, v := range out.Visuals {
		ids[v.ImageID] = true
	}
	assert.Len(t, ids, 3, "image ids are unique")
	assert.Len(t, out.Entries, 2, "input entries carried forward")
}

func TestImageRenderer_StoresAndBinds(t *testing.T) {
	blobs := newMemBlobs()
	w := NewImageRenderer(&scriptedClient{}, blobs)

	long := strings.Repeat("x", 300)
	unit := WorkUnit{ID: "u1", Context: testRC()}
	input := StagePayload{Visuals: []VisualSpec{{TargetRef: "01-01", ImageID: 7, Prompt: long}}}

	out, err := w.Run(context.Background(), unit, input, nil)
	require.NoError(t, err)
	require.Len(t, out.Bindings, 1)

	b := out.Bindings[0]
	assert.Equal(t, 7, b.ID)
	assert.Equal(t, "runs/run-1/images/0007.png", b.StorageKey)
	assert.Len(t, b.Description, maxBindingDescription, "descriptions stay compact")
	assert.Contains(t, blobs.data, b.StorageKey)
}

func TestImageRenderer_TruncatesOnRuneBoundary(t *testing.T) {
	blobs := newMemBlobs()
	w := NewImageRenderer(&scriptedClient{}, blobs)

	// Multi-byte runes straddling the description cap must not be split.
	// The leading ASCII byte puts every following rune off byte alignment
	// with the cap.
	long := "x" + strings.Repeat("é", 200)
	unit := WorkUnit{ID: "u1", Context: testRC()}
	input := StagePayload{Visuals: []VisualSpec{{TargetRef: "01-01", ImageID: 7, Prompt: long}}}

	out, err := w.Run(context.Background(), unit, input, nil)
	require.NoError(t, err)
	require.Len(t, out.Bindings, 1)

	desc := out.Bindings[0].Description
	assert.True(t, utf8.ValidString(desc))
	assert.LessOrEqual(t, len(desc), maxBindingDescription)
}

func TestLabPipeline_PlanThenWrite(t *testing.T) {
	client := &scriptedClient{text: func(req genai.Request) string {
		if strings.HasPrefix(req.Prompt, "Plan") {
			return "the plan"
		}
		return "the lab body"
	}}
	planner := NewLabPlanner(client, testDoc())
	writer := NewLabWriter(client)

	unit := WorkUnit{ID: "u2", Kind: KindLabBatch, TargetRefs: []string{"01-L1"}, Context: testRC()}

	planned, err := planner.Run(context.Background(), unit, StagePayload{}, nil)
	require.NoError(t, err)
	require.Len(t, planned.Plans, 1)
	assert.Equal(t, "the plan", planned.Plans[0].Plan)

	written, err := writer.Run(context.Background(), unit, planned, nil)
	require.NoError(t, err)
	require.Len(t, written.Entries, 1)
	assert.Equal(t, "lab", written.Entries[0].Kind)
	assert.Equal(t, "the lab body", written.Entries[0].Body)
}

func TestExtractVisualTags(t *testing.T) {
	text := "a [[visual: first]] b [[visual: second ]] c [[visual: broken"
	assert.Equal(t, []string{"first", "second"}, extractVisualTags(text))
	assert.Nil(t, extractVisualTags("no tags here"))
}
