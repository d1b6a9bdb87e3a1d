package analyzer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bdougie/swingvision/internal/embeddings"
	"github.com/bdougie/swingvision/internal/feedback"
	"github.com/bdougie/swingvision/internal/logging"
	"github.com/bdougie/swingvision/internal/models"
	"github.com/bdougie/swingvision/internal/observability"
	"github.com/bdougie/swingvision/internal/pose"
	"github.com/bdougie/swingvision/internal/storage"
	"github.com/bdougie/swingvision/internal/swing"
)

func TestMain(m *testing.M) {
	// go-cache janitors stop when their cache is collected
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

// standingSequence returns n frames of a fully visible, motionless pose
func standingSequence(n int) models.PoseSequence {
	seq := models.PoseSequence{Duration: float64(n) / 30, Width: 640, Height: 480}
	for i := 0; i < n; i++ {
		pts := make([]models.Landmark, models.LandmarkCount)
		for j := range pts {
			pts[j] = models.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
		}
		pts[models.Nose].Y = 0.2
		pts[models.LeftShoulder].X, pts[models.RightShoulder].X = 0.6, 0.4
		pts[models.LeftShoulder].Y, pts[models.RightShoulder].Y = 0.4, 0.4
		pts[models.LeftHip].X, pts[models.RightHip].X = 0.58, 0.42
		pts[models.LeftHip].Y, pts[models.RightHip].Y = 0.6, 0.6
		seq.Frames = append(seq.Frames, models.PoseFrame{Timestamp: float64(i) / 30, Landmarks: pts})
	}
	return seq
}

type fakeBuilder struct {
	seq     models.PoseSequence
	err     error
	gotPath string
	gotExt  string
}

func (b *fakeBuilder) Build(ctx context.Context, videoPath string, onProgress pose.ProgressFunc) (models.PoseSequence, error) {
	b.gotPath = videoPath
	if onProgress != nil {
		onProgress(pose.Progress{Percent: 100, Status: "done"})
	}
	return b.seq, b.err
}

func (b *fakeBuilder) BuildFromReader(ctx context.Context, r io.Reader, ext string, onProgress pose.ProgressFunc) (models.PoseSequence, error) {
	b.gotExt = ext
	if _, err := io.Copy(io.Discard, r); err != nil {
		return models.PoseSequence{}, err
	}
	return b.seq, b.err
}

// memoryStore keeps saved records in memory
type memoryStore struct {
	mu      sync.Mutex
	records []storage.Record
	flushes int
	saveErr error
}

func (s *memoryStore) Save(ctx context.Context, rec storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func TestProcessVideoStoresRecord(t *testing.T) {
	builder := &fakeBuilder{seq: standingSequence(40)}
	store := &memoryStore{}
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewPipelineMetrics(registry)
	require.NoError(t, err)

	p := NewProcessor(builder, feedback.NewSynthesizer(), store, WithMetrics(metrics))

	var progress []pose.Progress
	rec, err := p.ProcessVideo(context.Background(), "/videos/range/driver_01.mp4", "driver", func(pr pose.Progress) {
		progress = append(progress, pr)
	})
	require.NoError(t, err)

	assert.Equal(t, "/videos/range/driver_01.mp4", builder.gotPath)
	assert.Len(t, progress, 1)
	assert.Equal(t, "driver_01", rec.VideoName)
	assert.Equal(t, "driver", rec.Club)
	require.NotNil(t, rec.Sequence)
	assert.Equal(t, 40, rec.Sequence.Len())
	assert.Equal(t, feedback.NarrativePlaceholder, rec.Feedback.AIInsights)

	want, err := swing.AnalyzePoseData(builder.seq)
	require.NoError(t, err)
	assert.Equal(t, want, rec.Metrics)
	assert.Equal(t, swing.OverallScore(want), rec.Feedback.OverallScore)

	require.Len(t, store.records, 1)
	assert.Equal(t, rec.ID, store.records[0].ID)
	assert.Equal(t, 1, store.flushes)
	assert.Nil(t, rec.Embedding)

	assert.Equal(t, 1, testutil.CollectAndCount(registry, "swingvision_analyses_total"))
}

func TestProcessReaderUsesUploadName(t *testing.T) {
	builder := &fakeBuilder{seq: standingSequence(16)}
	store := &memoryStore{}
	p := NewProcessor(builder, feedback.NewSynthesizer(), store)

	rec, err := p.ProcessReader(context.Background(), bytes.NewReader([]byte("video")), "iron7.MOV", "", nil)
	require.NoError(t, err)
	assert.Equal(t, ".MOV", builder.gotExt)
	assert.Equal(t, "iron7", rec.VideoName)
	assert.Empty(t, rec.Club)
}

func TestBuildErrorsPassThrough(t *testing.T) {
	loadErr := &pose.MediaLoadError{Path: "x.mp4", Err: errors.New("corrupt")}
	store := &memoryStore{}
	p := NewProcessor(&fakeBuilder{err: loadErr}, feedback.NewSynthesizer(), store)

	_, err := p.ProcessVideo(context.Background(), "x.mp4", "", nil)
	require.Error(t, err)
	assert.Equal(t, pose.ReasonLoad, pose.FailureReason(err))
	assert.Empty(t, store.records)
	assert.Zero(t, store.flushes)
}

func TestAnalyzeSequenceRejectsEmpty(t *testing.T) {
	store := &memoryStore{}
	p := NewProcessor(&fakeBuilder{}, feedback.NewSynthesizer(), store)

	_, err := p.AnalyzeSequence(context.Background(), models.PoseSequence{}, "empty", "")
	assert.ErrorIs(t, err, swing.ErrEmptySequence)
	assert.Empty(t, store.records)
}

func TestAnalyzeSequenceSaveFailure(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("disk full")}
	p := NewProcessor(&fakeBuilder{}, feedback.NewSynthesizer(), store)

	_, err := p.AnalyzeSequence(context.Background(), standingSequence(8), "v", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAnalyzeSequenceAttachesEmbedding(t *testing.T) {
	svc := embeddings.NewService(2)
	defer svc.Close()

	store := &memoryStore{}
	p := NewProcessor(&fakeBuilder{}, feedback.NewSynthesizer(), store, WithEmbeddings(svc))

	rec, err := p.AnalyzeSequence(context.Background(), standingSequence(24), "v", "")
	require.NoError(t, err)
	require.Len(t, rec.Embedding, embeddings.Dimensions)
	assert.Equal(t, embeddings.FromMetrics(rec.Metrics), rec.Embedding)
}

func TestAnalyzeSequenceUsesNarrator(t *testing.T) {
	narrator := &AgentNarrator{
		run: func(ctx context.Context, prompt string) (string, error) {
			return "  Nice tempo. Keep your head still.  ", nil
		},
		logger: logging.Discard(),
	}

	store := &memoryStore{}
	p := NewProcessor(&fakeBuilder{}, feedback.NewSynthesizer(feedback.WithNarrator(narrator)), store)

	rec, err := p.AnalyzeSequence(context.Background(), standingSequence(24), "v", "driver")
	require.NoError(t, err)
	assert.Equal(t, "Nice tempo. Keep your head still.", rec.Feedback.AIInsights)
}

func TestAgentNarratorEmptyAnswer(t *testing.T) {
	n := &AgentNarrator{
		run:    func(ctx context.Context, prompt string) (string, error) { return " \n", nil },
		logger: logging.Discard(),
	}
	_, err := n.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	n.run = func(ctx context.Context, prompt string) (string, error) { return "", errors.New("model not found") }
	_, err = n.Generate(context.Background(), "prompt")
	assert.EqualError(t, err, "model not found")
}

func TestCheckOllama(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://localhost:11434/api/tags",
		httpmock.NewStringResponder(http.StatusOK, `{"models":[]}`))
	httpmock.RegisterResponder(http.MethodGet, "http://ollama.lan:11434/api/tags",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "loading"))

	assert.NoError(t, CheckOllama(context.Background(), client, "http://localhost/", 11434))
	assert.Error(t, CheckOllama(context.Background(), client, "http://ollama.lan", 11434))
	assert.Error(t, CheckOllama(context.Background(), client, "http://unregistered", 1))
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestNewAgentFailsWhenOllamaIsDown(t *testing.T) {
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://localhost:11434/api/tags",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := NewAgent(context.Background(), AgentConfig{
		BaseURL: "http://localhost",
		Port:    11434,
		Model:   "llama3.2",
		Client:  client,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestVideoName(t *testing.T) {
	assert.Equal(t, "swing", VideoName("/a/b/swing.mp4"))
	assert.Equal(t, "clip.final", VideoName("clip.final.mov"))
	assert.Equal(t, "noext", VideoName("noext"))
}
