package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete pipeline configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
	Playback      PlaybackConfig      `yaml:"playback"`
	LLM           LLMConfig           `yaml:"llm"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains capture device parameters
type AudioConfig struct {
	// Backend is either "miniaudio" or "portaudio".
	Backend    string `yaml:"backend" jsonschema:"enum=miniaudio,enum=portaudio"`
	SampleRate int    `yaml:"sample_rate"` // 0 uses the device rate
	FrameSize  int    `yaml:"frame_size"`  // samples per callback

	EchoCancellation *bool `yaml:"echo_cancellation,omitempty"`
	NoiseSuppression *bool `yaml:"noise_suppression,omitempty"`
	AutoGainControl  *bool `yaml:"auto_gain_control,omitempty"`

	HighPassCutoffHz float64 `yaml:"high_pass_cutoff_hz"`
	VolumeGain       float64 `yaml:"volume_gain"`
}

// TranscriptionConfig contains the speech recognition link configuration
type TranscriptionConfig struct {
	APIKey            string        `yaml:"api_key"`
	ListenURL         string        `yaml:"listen_url"`
	Model             string        `yaml:"model"`
	Language          string        `yaml:"language"`
	SilenceTimeout    time.Duration `yaml:"silence_timeout"`
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
}

// SynthesisConfig contains the speech synthesis configuration
type SynthesisConfig struct {
	// Provider is "deepgram" or "http" for a generic streaming endpoint.
	Provider string `yaml:"provider" jsonschema:"enum=deepgram,enum=http"`
	APIKey   string `yaml:"api_key"`
	Voice    string `yaml:"voice"`
	// Endpoint is the speak URL for deepgram and the synthesis URL for http.
	Endpoint string `yaml:"endpoint"`
	// Format of http response bodies, "pcm" or "mpeg".
	Format           string `yaml:"format" jsonschema:"enum=pcm,enum=mpeg"`
	SampleRate       int    `yaml:"sample_rate"`
	VoiceReferenceID string `yaml:"voice_reference_id"`
	MaxPendingChunks int    `yaml:"max_pending_chunks"`
}

// PlaybackConfig contains playback buffer parameters
type PlaybackConfig struct {
	BufferDuration time.Duration `yaml:"buffer_duration"`
	StartThreshold time.Duration `yaml:"start_threshold"`
	Volume         float64       `yaml:"volume"`
	BargeIn        bool          `yaml:"barge_in"`
}

// LLMConfig contains the completion source used by the chat command
type LLMConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
}

// MetricsConfig contains the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" jsonschema:"enum=text,enum=json"`
}

func enabled(v bool) *bool { return &v }

// Default returns the configuration used for everything a file or the
// environment leaves unset.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			Backend:          "miniaudio",
			FrameSize:        4096,
			EchoCancellation: enabled(true),
			NoiseSuppression: enabled(true),
			AutoGainControl:  enabled(true),
			VolumeGain:       5,
		},
		Transcription: TranscriptionConfig{
			Model:             "nova-2",
			Language:          "en-US",
			SilenceTimeout:    1500 * time.Millisecond,
			KeepAliveInterval: 5 * time.Second,
		},
		Synthesis: SynthesisConfig{
			Provider:         "deepgram",
			Voice:            "aura-asteria-en",
			Format:           "pcm",
			SampleRate:       16000,
			MaxPendingChunks: 256,
		},
		Playback: PlaybackConfig{
			BufferDuration: 30 * time.Second,
			StartThreshold: 200 * time.Millisecond,
			Volume:         1,
		},
		LLM: LLMConfig{
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a helpful voice assistant. Answer in short spoken sentences.",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// FromEnv returns the settings found in the environment. Everything else is
// left empty.
func FromEnv() Config {
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	return Config{
		Transcription: TranscriptionConfig{
			APIKey: deepgramKey,
		},
		Synthesis: SynthesisConfig{
			APIKey:           deepgramKey,
			Voice:            os.Getenv("VOICE_SYNTHESIS_VOICE"),
			Endpoint:         os.Getenv("VOICE_SYNTHESIS_ENDPOINT"),
			VoiceReferenceID: os.Getenv("VOICE_REFERENCE_ID"),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("OPENAI_MODEL"),
		},
		Logging: LoggingConfig{
			Level: os.Getenv("VOICE_LOG_LEVEL"),
		},
	}
}

// Load reads the configuration file at path, when given, and the
// environment over the defaults, then validates the result.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if err := merge(&config, file); err != nil {
			return nil, err
		}
	}

	if err := merge(&config, FromEnv()); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// merge copies every non-empty field of override onto config. Sections are
// merged one by one so an override never replaces a whole section.
func merge(config *Config, override Config) error {
	sections := []struct {
		name     string
		to, from any
	}{
		{"audio", &config.Audio, &override.Audio},
		{"transcription", &config.Transcription, &override.Transcription},
		{"synthesis", &config.Synthesis, &override.Synthesis},
		{"playback", &config.Playback, &override.Playback},
		{"llm", &config.LLM, &override.LLM},
		{"metrics", &config.Metrics, &override.Metrics},
		{"logging", &config.Logging, &override.Logging},
	}
	for _, section := range sections {
		if err := copier.CopyWithOption(section.to, section.from, copier.Option{IgnoreEmpty: true, DeepCopy: true}); err != nil {
			return fmt.Errorf("failed to merge %s config: %w", section.name, err)
		}
	}
	return nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		FieldNameTag:               "yaml",
		DoNotReference:             true,
		AllowAdditionalProperties:  false,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "Voice pipeline configuration"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}
	return data, nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.Backend != "miniaudio" && a.Backend != "portaudio" {
		return fmt.Errorf("backend must be 'miniaudio' or 'portaudio', got '%s'", a.Backend)
	}

	if a.SampleRate < 0 {
		return fmt.Errorf("sample_rate cannot be negative, got %d", a.SampleRate)
	}

	if a.FrameSize < 64 || a.FrameSize > 16384 {
		return fmt.Errorf("frame_size must be between 64 and 16384 samples, got %d", a.FrameSize)
	}

	if a.HighPassCutoffHz < 0 {
		return fmt.Errorf("high_pass_cutoff_hz cannot be negative, got %f", a.HighPassCutoffHz)
	}

	if a.VolumeGain <= 0 {
		return fmt.Errorf("volume_gain must be positive, got %f", a.VolumeGain)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.ListenURL != "" {
		if err := validateURL(t.ListenURL, "ws", "wss"); err != nil {
			return fmt.Errorf("listen_url: %w", err)
		}
	}

	if t.SilenceTimeout <= 0 {
		return fmt.Errorf("silence_timeout must be positive, got %s", t.SilenceTimeout)
	}

	if t.KeepAliveInterval < 0 {
		return fmt.Errorf("keep_alive_interval cannot be negative, got %s", t.KeepAliveInterval)
	}

	return nil
}

// Validate validates synthesis configuration
func (s *SynthesisConfig) Validate() error {
	switch s.Provider {
	case "deepgram":
	case "http":
		if s.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the http provider")
		}
		if s.Format != "pcm" && s.Format != "mpeg" {
			return fmt.Errorf("format must be 'pcm' or 'mpeg', got '%s'", s.Format)
		}
	default:
		return fmt.Errorf("provider must be 'deepgram' or 'http', got '%s'", s.Provider)
	}

	if s.Endpoint != "" {
		if err := validateURL(s.Endpoint, "http", "https"); err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
	}

	if s.SampleRate < 8000 || s.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", s.SampleRate)
	}

	if s.MaxPendingChunks < 1 {
		return fmt.Errorf("max_pending_chunks must be at least 1, got %d", s.MaxPendingChunks)
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.BufferDuration < time.Second {
		return fmt.Errorf("buffer_duration must be at least 1s, got %s", p.BufferDuration)
	}

	if p.StartThreshold < 0 || p.StartThreshold > p.BufferDuration {
		return fmt.Errorf("start_threshold must be between 0 and buffer_duration, got %s", p.StartThreshold)
	}

	if p.Volume < 0 || p.Volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1, got %f", p.Volume)
	}

	return nil
}

// Validate validates llm configuration
func (l *LLMConfig) Validate() error {
	if l.BaseURL != "" {
		if err := validateURL(l.BaseURL, "http", "https"); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}

	if l.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	return nil
}

// Validate validates metrics configuration
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	if _, err := parseLevel(l.Level); err != nil {
		return err
	}

	if l.Format != "text" && l.Format != "json" {
		return fmt.Errorf("format must be 'text' or 'json', got '%s'", l.Format)
	}

	return nil
}

// SlogLevel returns the configured level, info when it is invalid.
func (l LoggingConfig) SlogLevel() slog.Level {
	level, err := parseLevel(l.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("level must be one of debug, info, warn, error, got '%s'", level)
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("url %q must use one of %s", raw, strings.Join(schemes, ", "))
}
