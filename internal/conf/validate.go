package conf

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(s *Settings) error {
	ve := ValidationError{}
	for _, check := range []func(*Settings) error{
		validateVideo,
		validateDetector,
		validateNarrative,
		validateStorage,
		validateServer,
		validateOverlay,
	} {
		if err := check(s); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateVideo(s *Settings) error {
	if s.Video.Interval <= 0 || s.Video.Interval > 1 {
		return fmt.Errorf("video.interval must be in (0, 1] seconds, got %v", s.Video.Interval)
	}
	if s.Video.MaxDimension < 16 {
		return fmt.Errorf("video.maxdimension must be at least 16, got %d", s.Video.MaxDimension)
	}
	return nil
}

func validateDetector(s *Settings) error {
	switch s.Detector.Type {
	case "http":
		u, err := url.Parse(s.Detector.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("detector.url must be an absolute URL, got %q", s.Detector.URL)
		}
		if s.Detector.Timeout <= 0 {
			return errors.New("detector.timeout must be positive")
		}
	case "replay":
		// the replay file may be supplied per command
	default:
		return fmt.Errorf("detector.type must be http or replay, got %q", s.Detector.Type)
	}
	return nil
}

func validateNarrative(s *Settings) error {
	if !s.Narrative.Enabled {
		return nil
	}
	if s.Narrative.Model == "" {
		return errors.New("narrative.model is required when narrative is enabled")
	}
	if s.Narrative.Port <= 0 || s.Narrative.Port > 65535 {
		return fmt.Errorf("narrative.port out of range: %d", s.Narrative.Port)
	}
	if s.Narrative.Timeout <= 0 {
		return errors.New("narrative.timeout must be positive")
	}
	return nil
}

func validateStorage(s *Settings) error {
	switch s.Storage.Type {
	case "file":
		if s.Storage.OutputDir == "" {
			return errors.New("storage.outputdir is required for file storage")
		}
		if s.Storage.Format != "json" && s.Storage.Format != "yaml" {
			return fmt.Errorf("storage.format must be json or yaml, got %q", s.Storage.Format)
		}
	case "postgres":
		if s.Postgres.Host == "" || s.Postgres.DBName == "" {
			return errors.New("postgres.host and postgres.dbname are required for postgres storage")
		}
	default:
		return fmt.Errorf("storage.type must be file or postgres, got %q", s.Storage.Type)
	}
	return nil
}

func validateServer(s *Settings) error {
	if s.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.maxuploadmb must be positive, got %d", s.Server.MaxUploadMB)
	}
	return nil
}

func validateOverlay(s *Settings) error {
	if s.Overlay.FrameRate <= 0 || s.Overlay.FrameRate > 240 {
		return fmt.Errorf("overlay.framerate must be in (0, 240], got %v", s.Overlay.FrameRate)
	}
	if s.Overlay.Width <= 0 || s.Overlay.Height <= 0 || s.Overlay.Scale <= 0 {
		return errors.New("overlay.width, overlay.height and overlay.scale must be positive")
	}
	return nil
}
