// Package config loads the streaming core's configuration from environment
// variables, with an optional YAML file overlay loaded first.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete set of tunables for the streaming core. It covers
// the variables named in the spec's Configuration section (§6/§6.1), plus
// MEDIA_ROOT, SQLITE_PATH, and IDLE_SWEEP_INTERVAL_SEC, which those
// sections do not name.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	HTTPAddr  string `yaml:"http_addr" env:"HTTP_ADDR" default:":8080"`
	ConfigDir string `yaml:"config_dir" env:"CONFIG_DIR" default:"/app/data"`
	MediaRoot string `yaml:"media_root" env:"MEDIA_ROOT" default:"/media"`
}

type SessionConfig struct {
	SegmentDurationSec    float64       `yaml:"segment_duration_sec" env:"SEGMENT_DURATION_SEC" default:"2"`
	IdleTimeout           time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT_SEC" default:"90s"`
	SegmentWaitTimeout    time.Duration `yaml:"segment_wait_timeout" env:"SEGMENT_WAIT_TIMEOUT_SEC" default:"15s"`
	SessionStartupTimeout time.Duration `yaml:"session_startup_timeout" env:"SESSION_STARTUP_SEC" default:"30s"`
	SegmentTimeout        time.Duration `yaml:"segment_timeout" env:"SEGMENT_TIMEOUT_SEC" default:"60s"`
	RunnerStopGrace       time.Duration `yaml:"runner_stop_grace" env:"RUNNER_STOP_GRACE_SEC" default:"5s"`
	MaxRetries            int           `yaml:"max_retries" env:"MAX_RETRIES" default:"3"`
	ReuseAheadGrace       time.Duration `yaml:"reuse_ahead_grace" env:"REUSE_AHEAD_GRACE_SEC" default:"10s"`
	MaxConcurrentSessions int           `yaml:"max_concurrent_sessions" env:"MAX_CONCURRENT_SESSIONS" default:"0"`
	IdleSweepInterval     time.Duration `yaml:"idle_sweep_interval" env:"IDLE_SWEEP_INTERVAL_SEC" default:"10s"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path" env:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `yaml:"ffprobe_path" env:"FFPROBE_PATH" default:"ffprobe"`
}

type DatabaseConfig struct {
	Type            string `yaml:"type" env:"DATABASE_TYPE" default:"sqlite"`
	SQLitePath      string `yaml:"sqlite_path" env:"SQLITE_PATH" default:"/app/data/streamcore.db"`
	PostgresHost    string `yaml:"postgres_host" env:"POSTGRES_HOST" default:"localhost"`
	PostgresPort    string `yaml:"postgres_port" env:"POSTGRES_PORT" default:"5432"`
	PostgresUser    string `yaml:"postgres_user" env:"POSTGRES_USER" default:""`
	PostgresPass    string `yaml:"postgres_password" env:"POSTGRES_PASSWORD" default:""`
	PostgresDB      string `yaml:"postgres_db" env:"POSTGRES_DB" default:""`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`
	JSON  bool   `yaml:"json" env:"LOG_JSON" default:"false"`
}

// Default returns a fully populated Config using each field's declared
// default, with no environment or file overlay applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(reflect.ValueOf(cfg).Elem())
	return cfg
}

// Load builds a Config by starting from defaults, overlaying a YAML file (if
// CONFIG_FILE or path is set), then overlaying environment variables on top.
// Environment variables always win, matching the teacher's file-then-env
// layering in backend/internal/config/config.go.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	}

	if err := applyEnv(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config: apply environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations that would make the streaming core
// unable to start correctly.
func (c *Config) Validate() error {
	if c.Session.SegmentDurationSec <= 0 {
		return fmt.Errorf("session.segment_duration_sec must be positive, got %v", c.Session.SegmentDurationSec)
	}
	if c.Session.MaxRetries < 0 {
		return fmt.Errorf("session.max_retries must be >= 0")
	}
	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("database.type must be sqlite or postgres, got %q", c.Database.Type)
	}
	return nil
}

// applyDefaults walks a struct by reflection and sets every field to its
// `default` tag value, recursing into nested structs. Grounded on the
// teacher's backend/internal/config/config.go loadStructFromEnv walk.
func applyDefaults(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			applyDefaults(fv)
			continue
		}
		def, ok := field.Tag.Lookup("default")
		if !ok {
			continue
		}
		setFieldValue(fv, def)
	}
}

// applyEnv walks a struct by reflection, overriding any field whose `env`
// tag names a set environment variable.
func applyEnv(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			if err := applyEnv(fv); err != nil {
				return err
			}
			continue
		}
		envName, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}
		raw, set := os.LookupEnv(envName)
		if !set {
			continue
		}
		if err := setFieldValue(fv, raw); err != nil {
			return fmt.Errorf("field %s (env %s): %w", field.Name, envName, err)
		}
	}
	return nil
}

func setFieldValue(fv reflect.Value, raw string) error {
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int64:
		if fv.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				// allow bare seconds, e.g. "90" meaning 90s — the spec's
				// config variables are named *_SEC.
				secs, serr := strconv.ParseFloat(raw, 64)
				if serr != nil {
					return fmt.Errorf("invalid duration %q: %w", raw, err)
				}
				d = time.Duration(secs * float64(time.Second))
			}
			fv.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64, reflect.Float32:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(raw, ",")
			fv.Set(reflect.ValueOf(parts))
		}
	default:
		return fmt.Errorf("unsupported config field kind %s", fv.Kind())
	}
	return nil
}
