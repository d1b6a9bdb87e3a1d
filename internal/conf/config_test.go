package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inEmptyDir runs the test from a directory with no config file
func inEmptyDir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	inEmptyDir(t)

	s, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "info", s.Log.Level)
	assert.InDelta(t, 1.0/30, s.Video.Interval, 1e-12)
	assert.Equal(t, 720, s.Video.MaxDimension)
	assert.Equal(t, "http", s.Detector.Type)
	assert.Equal(t, 10*time.Second, s.Detector.Timeout)
	assert.Equal(t, 11434, s.Narrative.Port)
	assert.Equal(t, time.Hour, s.Narrative.CacheTTL)
	assert.Equal(t, "file", s.Storage.Type)
	assert.Equal(t, "json", s.Storage.Format)
	assert.Equal(t, ":8080", s.Server.Listen)
	assert.Equal(t, 60.0, s.Overlay.FrameRate)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	inEmptyDir(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
detector:
  url: http://pose.internal:9000
  timeout: 3s
storage:
  format: yaml
  outputdir: /var/lib/swings
`), 0o644))

	t.Setenv("SWINGVISION_NARRATIVE_MODEL", "llama3.2-vision:11b")
	t.Setenv("SWINGVISION_STORAGE_FORMAT", "json")

	s, err := Load(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "http://pose.internal:9000", s.Detector.URL)
	assert.Equal(t, 3*time.Second, s.Detector.Timeout)
	assert.Equal(t, "/var/lib/swings", s.Storage.OutputDir)
	assert.Equal(t, "llama3.2-vision:11b", s.Narrative.Model)
	assert.Equal(t, "json", s.Storage.Format, "environment overrides the file")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	inEmptyDir(t)
	_, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDiscoversWorkingDirectoryFile(t *testing.T) {
	inEmptyDir(t)
	require.NoError(t, os.WriteFile("swingvision.yaml", []byte("server:\n  listen: 127.0.0.1:9090\n"), 0o644))

	s, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", s.Server.Listen)
}

func validSettings(t *testing.T) *Settings {
	t.Helper()
	inEmptyDir(t)
	s, err := Load(nil, "")
	require.NoError(t, err)
	return s
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"interval", func(s *Settings) { s.Video.Interval = 0 }, "video.interval"},
		{"detector type", func(s *Settings) { s.Detector.Type = "grpc" }, "detector.type"},
		{"detector url", func(s *Settings) { s.Detector.URL = "localhost" }, "detector.url"},
		{"narrative model", func(s *Settings) { s.Narrative.Model = "" }, "narrative.model"},
		{"storage format", func(s *Settings) { s.Storage.Format = "xml" }, "storage.format"},
		{"storage type", func(s *Settings) { s.Storage.Type = "s3" }, "storage.type"},
		{"upload size", func(s *Settings) { s.Server.MaxUploadMB = 0 }, "server.maxuploadmb"},
		{"overlay", func(s *Settings) { s.Overlay.FrameRate = 1000 }, "overlay.framerate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings(t)
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Len(t, ve.Errors, 1)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSkipsDisabledNarrativeAndReplay(t *testing.T) {
	s := validSettings(t)
	s.Narrative.Enabled = false
	s.Narrative.Model = ""
	s.Detector.Type = "replay"
	s.Detector.URL = ""
	assert.NoError(t, ValidateSettings(s))
}
