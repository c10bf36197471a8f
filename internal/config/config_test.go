package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RecordingMode != "hands-free" {
		t.Errorf("RecordingMode = %s, want hands-free", cfg.RecordingMode)
	}
	if cfg.AudioDeviceID != -1 {
		t.Errorf("AudioDeviceID = %d, want -1 (system default)", cfg.AudioDeviceID)
	}
	if !cfg.Silence.Enabled {
		t.Error("silence detection disabled by default")
	}
	if cfg.Silence.DurationMS != 3000 {
		t.Errorf("Silence.DurationMS = %d, want 3000", cfg.Silence.DurationMS)
	}
	if cfg.Transcribe.Backend != "remote" {
		t.Errorf("Transcribe.Backend = %s, want remote", cfg.Transcribe.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RecordingMode != DefaultConfig().RecordingMode {
		t.Errorf("missing file did not yield defaults: %+v", cfg)
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.RecordingMode = "toggle"
	cfg.Language = "ja"
	cfg.Silence.DurationMS = 5000
	cfg.Transcribe.Model = "whisper-large"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.RecordingMode != "toggle" {
		t.Errorf("RecordingMode = %s, want toggle", loaded.RecordingMode)
	}
	if loaded.Language != "ja" {
		t.Errorf("Language = %s, want ja", loaded.Language)
	}
	if loaded.Silence.DurationMS != 5000 {
		t.Errorf("Silence.DurationMS = %d, want 5000", loaded.Silence.DurationMS)
	}
	if loaded.Transcribe.Model != "whisper-large" {
		t.Errorf("Transcribe.Model = %s, want whisper-large", loaded.Transcribe.Model)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("hotkey: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EZDICTATE_RECORDING_MODE", "press-to-hold")
	t.Setenv("EZDICTATE_TRANSCRIBE_API_KEY", "sk-from-env")
	t.Setenv("EZDICTATE_SILENCE_ENABLED", "false")
	t.Setenv("EZDICTATE_SILENCE_DURATION_MS", "4500")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RecordingMode != "press-to-hold" {
		t.Errorf("RecordingMode = %s, want env override", cfg.RecordingMode)
	}
	if cfg.Transcribe.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want env override", cfg.Transcribe.APIKey)
	}
	if cfg.Silence.Enabled {
		t.Error("Silence.Enabled = true, want env override false")
	}
	if cfg.Silence.DurationMS != 4500 {
		t.Errorf("Silence.DurationMS = %d, want 4500", cfg.Silence.DurationMS)
	}
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("EZDICTATE_MAX_RECORD_TIME", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxRecordTime != DefaultConfig().MaxRecordTime {
		t.Errorf("MaxRecordTime = %d, want default", cfg.MaxRecordTime)
	}
}

func TestUpdate(t *testing.T) {
	cfg := DefaultConfig()

	updates := map[string]interface{}{
		"recording_mode":  "toggle",
		"language":        "en",
		"max_record_time": float64(120),
		"hotkey": map[string]interface{}{
			"ctrl": false,
			"cmd":  true,
			"key":  "D",
		},
		"silence": map[string]interface{}{
			"enabled":     false,
			"duration_ms": float64(2000),
		},
		"transcribe": map[string]interface{}{
			"backend": "exec",
			"command": "whisper-cli --json",
		},
	}
	if err := cfg.Update(updates); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if cfg.RecordingMode != "toggle" {
		t.Errorf("RecordingMode = %s", cfg.RecordingMode)
	}
	if cfg.MaxRecordTime != 120 {
		t.Errorf("MaxRecordTime = %d", cfg.MaxRecordTime)
	}
	if cfg.Hotkey.Ctrl || !cfg.Hotkey.Cmd || cfg.Hotkey.Key != "D" {
		t.Errorf("Hotkey = %+v", cfg.Hotkey)
	}
	if cfg.Silence.Enabled || cfg.Silence.DurationMS != 2000 {
		t.Errorf("Silence = %+v", cfg.Silence)
	}
	if cfg.Transcribe.Backend != "exec" || cfg.Transcribe.Command != "whisper-cli --json" {
		t.Errorf("Transcribe = %+v", cfg.Transcribe)
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		updates map[string]interface{}
	}{
		{"bad recording mode", map[string]interface{}{"recording_mode": "hold-my-beer"}},
		{"bad ui language", map[string]interface{}{"ui_language": "fr"}},
		{"silence too short", map[string]interface{}{"silence": map[string]interface{}{"duration_ms": float64(100)}}},
		{"bad backend", map[string]interface{}{"transcribe": map[string]interface{}{"backend": "telepathy"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if err := cfg.Update(tt.updates); err == nil {
				t.Errorf("Update accepted %v", tt.updates)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"exec backend with command", func(c *Config) {
			c.Transcribe.Backend = "exec"
			c.Transcribe.Command = "whisper-cli"
		}, true},
		{"exec backend without command", func(c *Config) {
			c.Transcribe.Backend = "exec"
			c.Transcribe.Command = ""
		}, false},
		{"remote backend without endpoint", func(c *Config) {
			c.Transcribe.Endpoint = ""
		}, false},
		{"zero record time", func(c *Config) { c.MaxRecordTime = 0 }, false},
		{"record time too long", func(c *Config) { c.MaxRecordTime = 600 }, false},
		{"silence hold too long", func(c *Config) { c.Silence.DurationMS = 60000 }, false},
		{"bad port", func(c *Config) { c.ServerPort = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantOK && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transcribe.APIKey = "secret"

	clone := cfg.Clone()
	clone.Transcribe.APIKey = "changed"
	clone.Hotkey.Key = "X"

	if cfg.Transcribe.APIKey != "secret" {
		t.Error("mutating the clone changed the original")
	}
	if cfg.Hotkey.Key != "Space" {
		t.Error("mutating the clone changed the original hotkey")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandPath("~/models/x.bin")
	if err != nil {
		t.Fatalf("ExpandPath failed: %v", err)
	}
	if !strings.HasPrefix(got, home) {
		t.Errorf("ExpandPath = %s, want under %s", got, home)
	}

	if got, _ := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %q, want empty", got)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	if !strings.HasSuffix(path, filepath.Join("EzDictate", "config.yaml")) {
		t.Errorf("config path = %s", path)
	}
}
