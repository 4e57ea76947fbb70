// Package config loads the meetsl TOML configuration.
//
// Values are resolved in three layers: built-in defaults, then the config
// file, then MEETSL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chriscow/meetsl-go/internal/transport"
	"github.com/chriscow/meetsl-go/pkg/assist"
	"github.com/chriscow/meetsl-go/pkg/caption"
	"github.com/chriscow/meetsl-go/pkg/capture"
	"github.com/chriscow/meetsl-go/pkg/latency"
	"github.com/chriscow/meetsl-go/pkg/session"
)

// Defaults
const (
	DefaultRecognizerURL = "ws://localhost:8000/ws/session"
	DefaultCameraDir     = "camera"
	DefaultSpeechLang    = "en-US"
	DefaultStatusAddr    = "127.0.0.1:8090"
	DefaultSuggest       = "http"
)

// Config is the whole configuration file.
type Config struct {
	Session   SessionConfig        `toml:"session"`
	Transport TransportConfig      `toml:"transport"`
	Commit    caption.CommitConfig `toml:"commit"`
	Capture   capture.Config       `toml:"capture"`
	Latency   latency.Config       `toml:"latency"`
	Assist    assist.Config        `toml:"assist"`
	Suggest   ProviderConfig       `toml:"suggest"`
	Speech    SpeechConfig         `toml:"speech"`
	Status    StatusConfig         `toml:"status"`
}

// SessionConfig is the [session] section.
type SessionConfig struct {
	// ID scopes the recognizer endpoint. Empty generates one per run.
	ID        string `toml:"id"`
	Mode      string `toml:"mode"`
	CameraDir string `toml:"camera_dir"`
}

// TransportConfig is the [transport] section. Zero values use the transport
// defaults.
type TransportConfig struct {
	URL                string `toml:"url"`
	InitialBackoffMs   int64  `toml:"initial_backoff_ms"`
	MaxBackoffMs       int64  `toml:"max_backoff_ms"`
	MaxBufferedBytes   int    `toml:"max_buffered_bytes"`
	HandshakeTimeoutMs int64  `toml:"handshake_timeout_ms"`
}

// ProviderConfig names a registered plugin and the options passed to its
// factory.
type ProviderConfig struct {
	Provider string         `toml:"provider"`
	Options  map[string]any `toml:"options"`
}

// SpeechConfig is the [speech] section.
type SpeechConfig struct {
	Output bool    `toml:"output"`
	Input  bool    `toml:"input"`
	Lang   string  `toml:"lang"`
	Voice  string  `toml:"voice"`
	Speed  float64 `toml:"speed"`
	// OutputDir receives synthesized audio. Empty logs utterances instead.
	OutputDir string         `toml:"output_dir"`
	TTS       ProviderConfig `toml:"tts"`
	STT       ProviderConfig `toml:"stt"`
}

// StatusConfig is the [status] section. An empty Addr disables the API.
type StatusConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Session: SessionConfig{
			Mode:      assist.ModeDirect.String(),
			CameraDir: DefaultCameraDir,
		},
		Transport: TransportConfig{URL: DefaultRecognizerURL},
		Commit:    caption.DefaultCommitConfig,
		Capture:   capture.DefaultConfig,
		Latency:   latency.DefaultConfig,
		Assist:    assist.DefaultConfig,
		Suggest:   ProviderConfig{Provider: DefaultSuggest},
		Speech: SpeechConfig{
			Output: true,
			Lang:   DefaultSpeechLang,
			Speed:  1.0,
		},
		Status: StatusConfig{Addr: DefaultStatusAddr},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides values from MEETSL_* variables. Unset or empty
// variables leave the value alone.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv("MEETSL_" + key); v != "" {
			*dst = v
		}
	}

	set("SESSION_ID", &c.Session.ID)
	set("MODE", &c.Session.Mode)
	set("CAMERA_DIR", &c.Session.CameraDir)
	set("RECOGNIZER_URL", &c.Transport.URL)
	set("SUGGEST_PROVIDER", &c.Suggest.Provider)
	set("SPEECH_LANG", &c.Speech.Lang)
	set("TTS_PROVIDER", &c.Speech.TTS.Provider)
	set("STT_PROVIDER", &c.Speech.STT.Provider)
	set("STATUS_ADDR", &c.Status.Addr)

	if v := getenv("MEETSL_SUGGEST_URL"); v != "" {
		if c.Suggest.Options == nil {
			c.Suggest.Options = map[string]any{}
		}
		c.Suggest.Options["base_url"] = v
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error

	if _, err := session.ResolveID(c.Session.ID); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}
	if _, err := assist.ParseMode(c.Session.Mode); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}
	if err := validateURL(c.Transport.URL); err != nil {
		errs = append(errs, fmt.Errorf("transport: %w", err))
	}
	if c.Transport.InitialBackoffMs < 0 || c.Transport.MaxBackoffMs < 0 || c.Transport.HandshakeTimeoutMs < 0 {
		errs = append(errs, errors.New("transport: durations must not be negative"))
	}
	if err := c.Commit.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("commit: %w", err))
	}
	if err := c.Capture.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("capture: %w", err))
	}
	if err := c.Latency.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("latency: %w", err))
	}
	if err := c.Assist.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("assist: %w", err))
	}
	if c.Suggest.Provider == "" {
		errs = append(errs, errors.New("suggest: provider is required"))
	}
	if c.Speech.Speed <= 0 || c.Speech.Speed > 4 {
		errs = append(errs, fmt.Errorf("speech: speed must be in (0, 4], got %v", c.Speech.Speed))
	}
	if c.Speech.Input && c.Speech.STT.Provider == "" {
		errs = append(errs, errors.New("speech: input enabled without an stt provider"))
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// ToSession converts the file form to a session configuration.
func (c Config) ToSession() (session.Config, error) {
	mode, err := assist.ParseMode(c.Session.Mode)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		ID: c.Session.ID,
		Transport: transport.Config{
			URL:              c.Transport.URL,
			InitialBackoff:   ms(c.Transport.InitialBackoffMs),
			MaxBackoff:       ms(c.Transport.MaxBackoffMs),
			MaxBufferedBytes: c.Transport.MaxBufferedBytes,
			HandshakeTimeout: ms(c.Transport.HandshakeTimeoutMs),
		},
		Commit:       c.Commit,
		Capture:      c.Capture,
		Latency:      c.Latency,
		Assist:       c.Assist,
		Mode:         mode,
		SpeechLang:   c.Speech.Lang,
		SpeechOutput: c.Speech.Output,
		SpeechInput:  c.Speech.Input,
	}, nil
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
