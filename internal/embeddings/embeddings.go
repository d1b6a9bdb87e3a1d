// Package embeddings turns swing metrics into fixed-length vectors used for
// similar-swing search.
package embeddings

import (
	"errors"
	"math"
	"sync"

	"github.com/bdougie/swingvision/internal/models"
)

// Dimensions is the length of every swing embedding
const Dimensions = 12

// ErrQueueFull is returned when the worker queue cannot take more requests
var ErrQueueFull = errors.New("embedding queue is full, try again later")

// Normalisation scales for the non-score components
const (
	angleScale = 90.0
	tempoScale = 5.0
)

// FromMetrics builds the embedding for m: the eight phase scores, the spine
// angle at address, hip and shoulder rotation totals and the tempo ratio, each
// scaled to roughly [0,1]
func FromMetrics(m models.SwingMetrics) []float32 {
	v := make([]float32, 0, Dimensions)
	for _, p := range models.Phases {
		pm := m.Phase(p)
		score := 0.0
		if pm.Valid {
			score = float64(pm.Score) / 100
		}
		v = append(v, float32(score))
	}

	v = append(v,
		unit(m.SpineAngle.Address/angleScale),
		unit(m.HipRotation.Total/angleScale),
		unit(m.ShoulderRotation.Total/angleScale),
		unit(m.Tempo.Ratio/tempoScale),
	)
	return v
}

func unit(x float64) float32 {
	if math.IsNaN(x) {
		return 0
	}
	return float32(math.Max(0, math.Min(1, x)))
}

// Result represents the result of embedding generation
type Result struct {
	Key       string
	Embedding []float32
	Error     error
}

// Work represents a unit of embedding work
type Work struct {
	Key     string
	Metrics models.SwingMetrics
	Result  chan<- Result
}

// Service computes embeddings on a small worker pool and caches them by key
type Service struct {
	numWorkers int
	workQueue  chan Work
	cache      sync.Map
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewService creates a new embedding service with the specified number of workers
func NewService(numWorkers int) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}

	s := &Service{
		numWorkers: numWorkers,
		workQueue:  make(chan Work, 100),
	}
	s.startWorkers()
	return s
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				if cached, ok := s.cache.Load(work.Key); ok {
					work.Result <- Result{Key: work.Key, Embedding: cached.([]float32)}
					continue
				}

				embedding := FromMetrics(work.Metrics)
				s.cache.Store(work.Key, embedding)
				work.Result <- Result{Key: work.Key, Embedding: embedding}
			}
		}()
	}
}

// GetEmbedding requests an embedding asynchronously. The returned channel
// receives exactly one result.
func (s *Service) GetEmbedding(key string, m models.SwingMetrics) <-chan Result {
	resultChan := make(chan Result, 1)

	select {
	case s.workQueue <- Work{Key: key, Metrics: m, Result: resultChan}:
	default:
		resultChan <- Result{Key: key, Error: ErrQueueFull}
	}

	return resultChan
}

// Close shuts down the service and waits for all workers to finish
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.workQueue)
	})
	s.wg.Wait()
}
