package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Hotkey         HotkeyConfig     `yaml:"hotkey"`
	RecordingMode  string           `yaml:"recording_mode"` // "press-to-hold", "toggle" or "hands-free"
	Language       string           `yaml:"language"`       // "auto" for automatic detection, or specific language code
	AudioDeviceID  int              `yaml:"audio_device_id"`
	UILanguage     string           `yaml:"ui_language"` // "ja" or "en"
	MaxRecordTime  int              `yaml:"max_record_time"`  // seconds
	PasteSplitSize int              `yaml:"paste_split_size"` // characters
	Silence        SilenceConfig    `yaml:"silence"`
	Transcribe     TranscribeConfig `yaml:"transcribe"`
	History        HistoryConfig    `yaml:"history"`
	ServerPort     int              `yaml:"server_port"`
	mu             sync.RWMutex
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `yaml:"ctrl"`
	Shift bool   `yaml:"shift"`
	Alt   bool   `yaml:"alt"`
	Cmd   bool   `yaml:"cmd"`
	Key   string `yaml:"key"` // e.g., "Space"
}

// SilenceConfig holds the user-facing endpointing settings. The detector's
// internal tunables keep their defaults; only these two are exposed.
type SilenceConfig struct {
	Enabled bool `yaml:"enabled"`
	// DurationMS is how long confirmed silence must hold before the
	// session ends itself
	DurationMS int `yaml:"duration_ms"`
}

// TranscribeConfig holds the transcription backend settings
type TranscribeConfig struct {
	// Backend is "remote" (OpenAI-compatible HTTP endpoint) or "exec"
	// (local command-line program)
	Backend        string `yaml:"backend"`
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Command        string `yaml:"command"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// HistoryConfig holds the session history settings
type HistoryConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
	MaxEntries    int  `yaml:"max_entries"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Ctrl: true,
			Alt:  true,
			Key:  "Space",
		},
		RecordingMode:  "hands-free",
		Language:       "auto", // Automatic language detection
		AudioDeviceID:  -1,     // -1 means use system default device
		UILanguage:     "en",
		MaxRecordTime:  60,  // 60 seconds
		PasteSplitSize: 500, // 500 characters
		Silence: SilenceConfig{
			Enabled:    true,
			DurationMS: 3000,
		},
		Transcribe: TranscribeConfig{
			Backend:        "remote",
			Endpoint:       "https://api.openai.com/v1/audio/transcriptions",
			Model:          "whisper-1",
			TimeoutSeconds: 30,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
			MaxEntries:    500,
		},
		ServerPort: 43210,
	}
}

// Load loads configuration from the specified path, applying environment
// variable overrides afterwards.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvOverrides()

	if config.Hotkey.Key == "" {
		config.Hotkey.Key = "Space"
	}

	return config, nil
}

// applyEnvOverrides lets EZDICTATE_* variables win over the file. Useful for
// keeping the API key out of the config file.
func (c *Config) applyEnvOverrides() {
	overrideString(&c.RecordingMode, "EZDICTATE_RECORDING_MODE")
	overrideString(&c.Language, "EZDICTATE_LANGUAGE")
	overrideString(&c.UILanguage, "EZDICTATE_UI_LANGUAGE")
	overrideInt(&c.MaxRecordTime, "EZDICTATE_MAX_RECORD_TIME")
	overrideInt(&c.ServerPort, "EZDICTATE_SERVER_PORT")

	overrideBool(&c.Silence.Enabled, "EZDICTATE_SILENCE_ENABLED")
	overrideInt(&c.Silence.DurationMS, "EZDICTATE_SILENCE_DURATION_MS")

	overrideString(&c.Transcribe.Backend, "EZDICTATE_TRANSCRIBE_BACKEND")
	overrideString(&c.Transcribe.Endpoint, "EZDICTATE_TRANSCRIBE_ENDPOINT")
	overrideString(&c.Transcribe.APIKey, "EZDICTATE_TRANSCRIBE_API_KEY")
	overrideString(&c.Transcribe.Model, "EZDICTATE_TRANSCRIBE_MODEL")
	overrideString(&c.Transcribe.Command, "EZDICTATE_TRANSCRIBE_COMMAND")

	overrideBool(&c.History.Enabled, "EZDICTATE_HISTORY_ENABLED")
	overrideInt(&c.History.RetentionDays, "EZDICTATE_HISTORY_RETENTION_DAYS")
}

func overrideString(target *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*target = v
	}
}

func overrideInt(target *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*target = parsed
		}
	}
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, "Library", "Application Support", "EzDictate", "config.yaml")
}

// GetDataDir returns the directory holding logs and the history database
func GetDataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, "Library", "Application Support", "EzDictate")
}

// Update updates configuration fields from a JSON-decoded settings payload
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range updates {
		switch key {
		case "recording_mode":
			if v, ok := value.(string); ok {
				if !isValidRecordingMode(v) {
					return fmt.Errorf("invalid recording_mode: %s", v)
				}
				c.RecordingMode = v
			}
		case "language":
			if v, ok := value.(string); ok {
				c.Language = v
			}
		case "audio_device_id":
			if v, ok := value.(float64); ok {
				c.AudioDeviceID = int(v)
			}
		case "ui_language":
			if v, ok := value.(string); ok {
				if v != "ja" && v != "en" {
					return fmt.Errorf("invalid ui_language: %s", v)
				}
				c.UILanguage = v
			}
		case "max_record_time":
			if v, ok := value.(float64); ok {
				c.MaxRecordTime = int(v)
			}
		case "paste_split_size":
			if v, ok := value.(float64); ok {
				c.PasteSplitSize = int(v)
			}
		case "hotkey":
			if v, ok := value.(map[string]interface{}); ok {
				if ctrl, ok := v["ctrl"].(bool); ok {
					c.Hotkey.Ctrl = ctrl
				}
				if shift, ok := v["shift"].(bool); ok {
					c.Hotkey.Shift = shift
				}
				if alt, ok := v["alt"].(bool); ok {
					c.Hotkey.Alt = alt
				}
				if cmd, ok := v["cmd"].(bool); ok {
					c.Hotkey.Cmd = cmd
				}
				if key, ok := v["key"].(string); ok {
					c.Hotkey.Key = key
				}
			}
		case "silence":
			if v, ok := value.(map[string]interface{}); ok {
				if enabled, ok := v["enabled"].(bool); ok {
					c.Silence.Enabled = enabled
				}
				if ms, ok := v["duration_ms"].(float64); ok {
					if ms < 500 || ms > 30000 {
						return fmt.Errorf("invalid silence duration_ms: %v", ms)
					}
					c.Silence.DurationMS = int(ms)
				}
			}
		case "transcribe":
			if v, ok := value.(map[string]interface{}); ok {
				if backend, ok := v["backend"].(string); ok {
					if backend != "remote" && backend != "exec" {
						return fmt.Errorf("invalid transcribe backend: %s", backend)
					}
					c.Transcribe.Backend = backend
				}
				if endpoint, ok := v["endpoint"].(string); ok {
					c.Transcribe.Endpoint = endpoint
				}
				if apiKey, ok := v["api_key"].(string); ok {
					c.Transcribe.APIKey = apiKey
				}
				if model, ok := v["model"].(string); ok {
					c.Transcribe.Model = model
				}
				if command, ok := v["command"].(string); ok {
					c.Transcribe.Command = command
				}
			}
		}
	}

	return nil
}

func isValidRecordingMode(mode string) bool {
	switch mode {
	case "press-to-hold", "toggle", "hands-free":
		return true
	}
	return false
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Hotkey:         c.Hotkey,
		RecordingMode:  c.RecordingMode,
		Language:       c.Language,
		AudioDeviceID:  c.AudioDeviceID,
		UILanguage:     c.UILanguage,
		MaxRecordTime:  c.MaxRecordTime,
		PasteSplitSize: c.PasteSplitSize,
		Silence:        c.Silence,
		Transcribe:     c.Transcribe,
		History:        c.History,
		ServerPort:     c.ServerPort,
	}
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !isValidRecordingMode(c.RecordingMode) {
		return fmt.Errorf("invalid recording_mode: %s (must be 'press-to-hold', 'toggle' or 'hands-free')", c.RecordingMode)
	}

	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}

	if c.UILanguage != "ja" && c.UILanguage != "en" {
		return fmt.Errorf("invalid ui_language: %s (must be 'ja' or 'en')", c.UILanguage)
	}

	if c.MaxRecordTime <= 0 || c.MaxRecordTime > 300 {
		return fmt.Errorf("invalid max_record_time: %d (must be between 1 and 300 seconds)", c.MaxRecordTime)
	}

	if c.PasteSplitSize <= 0 || c.PasteSplitSize > 10000 {
		return fmt.Errorf("invalid paste_split_size: %d (must be between 1 and 10000 characters)", c.PasteSplitSize)
	}

	if c.Silence.DurationMS < 500 || c.Silence.DurationMS > 30000 {
		return fmt.Errorf("invalid silence duration_ms: %d (must be between 500 and 30000)", c.Silence.DurationMS)
	}

	switch c.Transcribe.Backend {
	case "remote":
		if c.Transcribe.Endpoint == "" {
			return fmt.Errorf("transcribe endpoint cannot be empty for the remote backend")
		}
		if c.Transcribe.Model == "" {
			return fmt.Errorf("transcribe model cannot be empty for the remote backend")
		}
	case "exec":
		if c.Transcribe.Command == "" {
			return fmt.Errorf("transcribe command cannot be empty for the exec backend")
		}
	default:
		return fmt.Errorf("invalid transcribe backend: %s (must be 'remote' or 'exec')", c.Transcribe.Backend)
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d", c.ServerPort)
	}

	return nil
}
