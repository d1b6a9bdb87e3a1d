// Package conf loads swingvision settings from defaults, an optional YAML
// file, SWINGVISION_* environment variables and bound command line flags.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SWINGVISION_DETECTOR_URL
const EnvPrefix = "SWINGVISION"

// Settings is the complete configuration
type Settings struct {
	Debug bool

	Log struct {
		Level string // debug, info, warn or error
	}

	Video struct {
		FFmpegPath   string
		FFprobePath  string
		Interval     float64 // sampling interval in seconds
		MaxDimension int     // long axis of the detector bitmap in pixels
		TempDir      string  // where uploads are spooled
	}

	Detector struct {
		Type       string // http or replay
		URL        string
		Timeout    time.Duration
		ReplayPath string
	}

	Narrative struct {
		Enabled  bool
		BaseURL  string
		Port     int
		Model    string
		Timeout  time.Duration
		CacheTTL time.Duration
	}

	Storage struct {
		Type      string // file or postgres
		OutputDir string
		Format    string // json or yaml
	}

	Postgres struct {
		Host       string
		Port       string
		User       string
		Password   string
		DBName     string
		SSLMode    string
		InitSchema bool
	}

	Server struct {
		Listen      string
		MaxUploadMB int
		RecentTTL   time.Duration
	}

	Overlay struct {
		FrameRate float64
		Width     int
		Height    int
		Scale     float64
	}
}

// NewViper returns a viper instance with defaults and environment overrides
// registered. Callers may bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration file into v and returns validated settings.
// With an empty path, swingvision.yaml is looked up in the working directory
// and the user config directory; a missing file is not an error.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if v == nil {
		v = NewViper()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("swingvision")
		v.SetConfigType("yaml")
		for _, dir := range defaultConfigPaths() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("fatal error reading config file: %w", err)
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

func defaultConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "swingvision"))
	}
	return paths
}
