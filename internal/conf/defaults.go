package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers a default for every key so environment overrides
// are picked up by Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("log.level", "info")

	v.SetDefault("video.ffmpegpath", "ffmpeg")
	v.SetDefault("video.ffprobepath", "ffprobe")
	v.SetDefault("video.interval", 1.0/30)
	v.SetDefault("video.maxdimension", 720)
	v.SetDefault("video.tempdir", "")

	v.SetDefault("detector.type", "http")
	v.SetDefault("detector.url", "http://localhost:5001")
	v.SetDefault("detector.timeout", 10*time.Second)
	v.SetDefault("detector.replaypath", "")

	v.SetDefault("narrative.enabled", true)
	v.SetDefault("narrative.baseurl", "http://localhost")
	v.SetDefault("narrative.port", 11434)
	v.SetDefault("narrative.model", "llama3.2")
	v.SetDefault("narrative.timeout", 20*time.Second)
	v.SetDefault("narrative.cachettl", time.Hour)

	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.outputdir", "swing_results")
	v.SetDefault("storage.format", "json")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "swingvision")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.initschema", true)

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.maxuploadmb", 200)
	v.SetDefault("server.recentttl", 30*time.Minute)

	v.SetDefault("overlay.framerate", 60.0)
	v.SetDefault("overlay.width", 1280)
	v.SetDefault("overlay.height", 720)
	v.SetDefault("overlay.scale", 1.0)
}
