// Package storage persists swing analysis records
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/bdougie/swingvision/internal/logging"
	"github.com/bdougie/swingvision/internal/models"
)

const batchSize = 10 // Number of records to batch write

// Supported file formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	// ErrNotFound is returned when no record has the requested ID
	ErrNotFound = errors.New("analysis record not found")

	// ErrUnknownFormat is returned for file formats other than json and yaml
	ErrUnknownFormat = errors.New("unknown storage format")
)

// Record is one stored swing analysis
type Record struct {
	ID        uuid.UUID            `json:"id" yaml:"id"`
	VideoName string               `json:"videoName" yaml:"videoName"`
	Club      string               `json:"club,omitempty" yaml:"club,omitempty"`
	CreatedAt time.Time            `json:"createdAt" yaml:"createdAt"`
	Metrics   models.SwingMetrics  `json:"metrics" yaml:"metrics"`
	Feedback  models.SwingFeedback `json:"feedback" yaml:"feedback"`
	Sequence  *models.PoseSequence `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Embedding []float32            `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// NewRecord creates a record with a fresh ID
func NewRecord(videoName, club string, seq *models.PoseSequence, m models.SwingMetrics, fb models.SwingFeedback) Record {
	return Record{
		ID:        uuid.New(),
		VideoName: videoName,
		Club:      club,
		CreatedAt: time.Now().UTC(),
		Metrics:   m,
		Feedback:  fb,
		Sequence:  seq,
	}
}

// Storage defines the interface for storing analysis records
type Storage interface {
	// Save adds a single record
	Save(ctx context.Context, rec Record) error

	// Flush ensures all pending records are saved
	Flush() error
}

// Finder looks records up by ID
type Finder interface {
	Find(ctx context.Context, id uuid.UUID) (Record, error)
}

// FileStorage batches records and writes them to
// <outputDir>/<videoName>/analysis_results.<format>
type FileStorage struct {
	mu        sync.Mutex
	pending   []Record
	outputDir string
	format    string
	logger    *slog.Logger
}

// NewFileStorage creates a file store writing in the given format
func NewFileStorage(outputDir, format string, logger *slog.Logger) (*FileStorage, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &FileStorage{
		outputDir: outputDir,
		format:    format,
		logger:    logging.OrDiscard(logger),
	}, nil
}

// Path returns the results file for a video
func (s *FileStorage) Path(videoName string) string {
	return filepath.Join(s.outputDir, videoName, "analysis_results."+s.format)
}

// Save adds a record to the batch and flushes if the batch is full
func (s *FileStorage) Save(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, rec)

	if len(s.pending) >= batchSize {
		if err := s.flush(); err != nil {
			s.logger.Error("failed to flush analysis records", "error", err)
			return err
		}
	}
	return nil
}

// Flush writes all pending records to disk
func (s *FileStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *FileStorage) flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	byVideo := make(map[string][]Record)
	var order []string
	for _, rec := range s.pending {
		if _, ok := byVideo[rec.VideoName]; !ok {
			order = append(order, rec.VideoName)
		}
		byVideo[rec.VideoName] = append(byVideo[rec.VideoName], rec)
	}

	for _, name := range order {
		path := s.Path(name)
		existing, err := s.read(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := s.write(path, append(existing, byVideo[name]...)); err != nil {
			return err
		}
		s.logger.Debug("analysis records written", "path", path, "count", len(byVideo[name]))
	}

	s.pending = nil
	return nil
}

// Load returns every stored record for a video, oldest first. Pending
// records are not included until flushed.
func (s *FileStorage) Load(videoName string) ([]Record, error) {
	recs, err := s.read(s.Path(videoName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return recs, err
}

// Find looks in the pending batch, then in every results file under the
// output directory, for the record with the given ID
func (s *FileStorage) Find(ctx context.Context, id uuid.UUID) (Record, error) {
	s.mu.Lock()
	for _, rec := range s.pending {
		if rec.ID == id {
			s.mu.Unlock()
			return rec, nil
		}
	}
	s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.outputDir, "*", "analysis_results."+s.format))
	if err != nil {
		return Record{}, err
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		recs, err := s.read(path)
		if err != nil {
			s.logger.Warn("skipping unreadable results file", "path", path, "error", err)
			continue
		}
		for _, rec := range recs {
			if rec.ID == id {
				return rec, nil
			}
		}
	}
	return Record{}, ErrNotFound
}

func (s *FileStorage) read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var recs []Record
	switch s.format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &recs)
	default:
		err = json.Unmarshal(data, &recs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing records in %s: %w", path, err)
	}
	return recs, nil
}

func (s *FileStorage) write(path string, recs []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for results: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	return s.encode(file, recs)
}

// encode writes recs to w and closes it. A failed close loses the batch, so
// its error is returned too.
func (s *FileStorage) encode(w io.WriteCloser, recs []Record) error {
	var err error
	switch s.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(recs); err == nil {
			err = enc.Close()
		}
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(recs)
	}
	if err != nil {
		w.Close()
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close results file: %w", err)
	}
	return nil
}
