package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yok-tottii/EzDictate/internal/audio"
	"github.com/yok-tottii/EzDictate/internal/config"
	"github.com/yok-tottii/EzDictate/internal/history"
	"github.com/yok-tottii/EzDictate/internal/session"
)

// fakeDriver returns a scripted device list without touching PortAudio.
type fakeDriver struct {
	devices []audio.Device
	err     error
}

func (d *fakeDriver) ListDevices() ([]audio.Device, error) { return d.devices, d.err }
func (d *fakeDriver) Initialize(audio.Config) error        { return nil }
func (d *fakeDriver) StartRecording() error                { return nil }
func (d *fakeDriver) StopRecording() ([]byte, error)       { return nil, nil }
func (d *fakeDriver) FrequencyData() ([]byte, bool)        { return nil, false }
func (d *fakeDriver) CapturedBytes() int                   { return 0 }
func (d *fakeDriver) Err() error                           { return nil }
func (d *fakeDriver) IsRecording() bool                    { return false }
func (d *fakeDriver) Close() error                         { return nil }

type fakeStateProvider struct {
	state session.State
}

func (f *fakeStateProvider) State() session.State { return f.state }

type fakeHistory struct {
	entries []history.Entry
	listErr error
	deleted []string
	cleared bool
}

func (f *fakeHistory) List(ctx context.Context, limit int) ([]history.Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeHistory) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeHistory) Clear(ctx context.Context) error {
	f.cleared = true
	return nil
}

type fakePermissions struct {
	microphone    bool
	accessibility bool
}

func (f *fakePermissions) CheckAllPermissions() map[string]bool {
	return map[string]bool{"microphone": f.microphone, "accessibility": f.accessibility}
}

func (f *fakePermissions) AreAllPermissionsGranted() bool {
	return f.microphone && f.accessibility
}

func newTestHandler(t *testing.T) (*Handler, *config.Config) {
	t.Helper()
	cfg := config.DefaultConfig()
	handler := New(cfg, nil, nil)
	handler.SetConfigPath(filepath.Join(t.TempDir(), "config.yaml"))
	return handler, cfg
}

func TestNew(t *testing.T) {
	handler, cfg := newTestHandler(t)

	if handler == nil {
		t.Fatal("Expected handler to be created")
	}
	if handler.config != cfg {
		t.Error("Expected config to be set")
	}
}

func TestGetSettings(t *testing.T) {
	handler, cfg := newTestHandler(t)
	cfg.Transcribe.APIKey = "sk-secret"

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	w := httptest.NewRecorder()

	handler.handleSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["recording_mode"] != "hands-free" {
		t.Errorf("Expected recording_mode hands-free, got %v", response["recording_mode"])
	}

	transcribe, ok := response["transcribe"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected transcribe section in settings")
	}
	if _, present := transcribe["api_key"]; present {
		t.Error("API key must never be echoed back")
	}
	if transcribe["api_key_set"] != true {
		t.Error("Expected api_key_set to be true")
	}
}

func TestPutSettings(t *testing.T) {
	handler, cfg := newTestHandler(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	handler.SetConfigPath(path)

	body := map[string]interface{}{
		"recording_mode": "toggle",
		"silence": map[string]interface{}{
			"enabled":     false,
			"duration_ms": 2000,
		},
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader(data))
	w := httptest.NewRecorder()

	handler.handleSettings(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	updated := cfg.Clone()
	if updated.RecordingMode != "toggle" {
		t.Error("Expected recording_mode to be updated")
	}
	if updated.Silence.Enabled {
		t.Error("Expected silence detection to be disabled")
	}
	if updated.Silence.DurationMS != 2000 {
		t.Errorf("Expected silence duration 2000, got %d", updated.Silence.DurationMS)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected settings to be persisted: %v", err)
	}
}

func TestPutSettingsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid recording mode", `{"recording_mode": "continuous"}`},
		{"silence duration too short", `{"silence": {"duration_ms": 100}}`},
		{"invalid transcribe backend", `{"transcribe": {"backend": "telepathy"}}`},
		{"malformed JSON", `{"recording_mode":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTestHandler(t)

			req := httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()

			handler.handleSettings(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestSettingsMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/settings", nil)
	w := httptest.NewRecorder()

	handler.handleSettings(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestGetDevices(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetAudioDriver(&fakeDriver{devices: []audio.Device{
		{ID: 0, Name: "Built-in Microphone", IsDefault: true},
		{ID: 2, Name: "USB Microphone"},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	w := httptest.NewRecorder()

	handler.handleDevices(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Devices []struct {
			ID        int    `json:"id"`
			Name      string `json:"name"`
			IsDefault bool   `json:"is_default"`
		} `json:"devices"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(response.Devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(response.Devices))
	}
	if response.Devices[0].Name != "Built-in Microphone" || !response.Devices[0].IsDefault {
		t.Errorf("Unexpected first device: %+v", response.Devices[0])
	}
}

func TestGetDevicesFallback(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetAudioDriver(&fakeDriver{err: errors.New("portaudio not initialized")})

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	w := httptest.NewRecorder()

	handler.handleDevices(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Devices []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"devices"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(response.Devices) != 1 || response.Devices[0].ID != -1 {
		t.Errorf("Expected system default fallback, got %+v", response.Devices)
	}
}

func TestGetState(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetStateProvider(&fakeStateProvider{state: session.Listening})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()

	handler.handleState(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["state"] != "Listening" {
		t.Errorf("Expected state Listening, got %s", response["state"])
	}
}

func TestGetStateWithoutProvider(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()

	handler.handleState(w, req)

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["state"] != "unknown" {
		t.Errorf("Expected state unknown, got %s", response["state"])
	}
}

func TestGetHistory(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetHistoryStore(&fakeHistory{entries: []history.Entry{
		{
			ID:                "one",
			StartedAt:         time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
			Duration:          4 * time.Second,
			PCMBytes:          128000,
			StopReason:        "silence",
			Transcript:        "hello world",
			TranscribeLatency: 800 * time.Millisecond,
		},
		{
			ID:         "two",
			StartedAt:  time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
			StopReason: "manual",
			Error:      "endpoint unreachable",
		},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=10", nil)
	w := httptest.NewRecorder()

	handler.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Entries []historyEntryJSON `json:"entries"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(response.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(response.Entries))
	}
	first := response.Entries[0]
	if first.Transcript != "hello world" || first.StopReason != "silence" {
		t.Errorf("Unexpected first entry: %+v", first)
	}
	if first.DurationMS != 4000 {
		t.Errorf("Expected duration_ms 4000, got %d", first.DurationMS)
	}
	if response.Entries[1].Error != "endpoint unreachable" {
		t.Errorf("Expected failure entry to carry its error")
	}
}

func TestGetHistoryInvalidLimit(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetHistoryStore(&fakeHistory{})

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=banana", nil)
	w := httptest.NewRecorder()

	handler.handleHistory(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHistoryDisabled(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()

	handler.handleHistory(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 when history is disabled, got %d", w.Code)
	}
}

func TestClearHistory(t *testing.T) {
	handler, _ := newTestHandler(t)
	store := &fakeHistory{entries: []history.Entry{{ID: "one"}}}
	handler.SetHistoryStore(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/history", nil)
	w := httptest.NewRecorder()

	handler.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !store.cleared {
		t.Error("Expected store to be cleared")
	}
}

func TestDeleteHistoryEntry(t *testing.T) {
	handler, _ := newTestHandler(t)
	store := &fakeHistory{}
	handler.SetHistoryStore(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/history/abc-123", nil)
	w := httptest.NewRecorder()

	handler.handleHistoryEntry(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "abc-123" {
		t.Errorf("Expected entry abc-123 to be deleted, got %v", store.deleted)
	}
}

func TestDeleteHistoryEntryMissingID(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetHistoryStore(&fakeHistory{})

	req := httptest.NewRequest(http.MethodDelete, "/api/history/", nil)
	w := httptest.NewRecorder()

	handler.handleHistoryEntry(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestGetPermissions(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetPermissionChecker(&fakePermissions{microphone: true, accessibility: false})

	req := httptest.NewRequest(http.MethodGet, "/api/permissions", nil)
	w := httptest.NewRecorder()

	handler.handlePermissions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["microphone"] != true {
		t.Error("Expected microphone to be granted")
	}
	if response["accessibility"] != false {
		t.Error("Expected accessibility to be denied")
	}
	if response["all_granted"] != false {
		t.Error("Expected all_granted to be false")
	}
}

func TestHotkeyValidate(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := `{"ctrl": true, "alt": true, "key": "Space"}`
	req := httptest.NewRequest(http.MethodPost, "/api/hotkey/validate", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.handleHotkeyValidate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["valid"] != true {
		t.Errorf("Expected Ctrl+Alt+Space to be valid: %v", response)
	}
}

func TestHotkeyValidateReportsConflicts(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := `{"cmd": true, "key": "Space"}`
	req := httptest.NewRequest(http.MethodPost, "/api/hotkey/validate", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.handleHotkeyValidate(w, req)

	var response struct {
		Valid     bool `json:"valid"`
		Conflicts []struct {
			Name string `json:"name"`
		} `json:"conflicts"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !response.Valid {
		t.Error("Cmd+Space is valid, just conflicting")
	}
	if len(response.Conflicts) == 0 {
		t.Error("Expected Cmd+Space to report Spotlight conflict")
	}
}

func TestHotkeyValidateRejectsNoModifier(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := `{"key": "Space"}`
	req := httptest.NewRequest(http.MethodPost, "/api/hotkey/validate", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.handleHotkeyValidate(w, req)

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["valid"] != false {
		t.Error("Expected a hotkey without modifiers to be invalid")
	}
}

func TestHotkeyRegister(t *testing.T) {
	handler, cfg := newTestHandler(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	handler.SetConfigPath(path)

	callbackCalled := false
	handler.onHotkeyChanged = func() error {
		callbackCalled = true
		return nil
	}

	body := `{"ctrl": true, "shift": true, "key": "D"}`
	req := httptest.NewRequest(http.MethodPost, "/api/hotkey/register", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.handleHotkeyRegister(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	if !callbackCalled {
		t.Error("Expected hotkey change callback to run")
	}

	saved := cfg.Clone().Hotkey
	if !saved.Ctrl || !saved.Shift || saved.Key != "D" {
		t.Errorf("Expected hotkey to be updated, got %+v", saved)
	}
	if saved.Alt || saved.Cmd {
		t.Errorf("Expected unused modifiers to be cleared, got %+v", saved)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected settings to be persisted: %v", err)
	}
}

func TestHotkeyRegisterCallbackFailure(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.onHotkeyChanged = func() error {
		return errors.New("registration failed")
	}

	body := `{"ctrl": true, "alt": true, "key": "Space"}`
	req := httptest.NewRequest(http.MethodPost, "/api/hotkey/register", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.handleHotkeyRegister(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected partial success 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["status"] != "saved" {
		t.Errorf("Expected status saved, got %v", response["status"])
	}
	if response["warning"] == nil {
		t.Error("Expected a warning about failed re-registration")
	}
}

func TestHotkeyRegisterRejectsInvalid(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := `{"key": "NotARealKey", "ctrl": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/hotkey/register", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.handleHotkeyRegister(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestRegisterRoutes(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SetStateProvider(&fakeStateProvider{})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected routed /api/state to return 200, got %d", w.Code)
	}
}
