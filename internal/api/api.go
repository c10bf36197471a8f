// Package api implements the JSON API behind the local settings UI:
// settings read/update, device enumeration, session state, dictation
// history, permission status and hotkey validation/registration.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yok-tottii/EzDictate/internal/audio"
	"github.com/yok-tottii/EzDictate/internal/config"
	"github.com/yok-tottii/EzDictate/internal/history"
	"github.com/yok-tottii/EzDictate/internal/hotkey"
	"github.com/yok-tottii/EzDictate/internal/session"
	"github.com/yok-tottii/EzDictate/internal/wizard"
)

// StateProvider exposes the current recording session state.
// *session.Manager satisfies it.
type StateProvider interface {
	State() session.State
}

// HistoryStore is the slice of the history store the API needs.
// *history.Store satisfies it; it stays nil when history is disabled.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// PermissionChecker reports macOS permission status. The real checker goes
// through AVFoundation; tests substitute a stub.
type PermissionChecker interface {
	CheckAllPermissions() map[string]bool
	AreAllPermissionsGranted() bool
}

// Handler manages API endpoints
type Handler struct {
	config      *config.Config
	wizard      *wizard.SetupWizard
	audioDriver audio.Driver

	sessions    StateProvider
	historyDB   HistoryStore
	permissions PermissionChecker

	// onHotkeyChanged re-registers the OS hotkey after a successful
	// /api/hotkey/register; may be nil
	onHotkeyChanged func() error

	// configPath is where settings updates are persisted
	configPath string

	mu sync.RWMutex
}

// New creates a new API handler
func New(cfg *config.Config, wiz *wizard.SetupWizard, onHotkeyChanged func() error) *Handler {
	return &Handler{
		config:          cfg,
		wizard:          wiz,
		onHotkeyChanged: onHotkeyChanged,
		configPath:      config.GetConfigPath(),
	}
}

// SetAudioDriver sets the audio driver instance
// This is called after the audio driver is initialized in main.go
func (h *Handler) SetAudioDriver(driver audio.Driver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.audioDriver = driver
}

// SetStateProvider wires the session manager in for /api/state
func (h *Handler) SetStateProvider(sp StateProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = sp
}

// SetHistoryStore wires the history store in for /api/history
func (h *Handler) SetHistoryStore(hs HistoryStore) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.historyDB = hs
}

// SetPermissionChecker wires the permission checker in for /api/permissions
func (h *Handler) SetPermissionChecker(pc PermissionChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.permissions = pc
}

// SetConfigPath overrides where settings are saved. Used by tests.
func (h *Handler) SetConfigPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.configPath = path
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/history/", h.handleHistoryEntry)
	mux.HandleFunc("/api/permissions", h.handlePermissions)
	mux.HandleFunc("/api/hotkey/validate", h.handleHotkeyValidate)
	mux.HandleFunc("/api/hotkey/register", h.handleHotkeyRegister)
}

// handleSettings handles GET and PUT /api/settings
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGetSettings(w, r)
	case http.MethodPut:
		h.handleUpdateSettings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// settingsPayload builds the JSON view of the configuration. The API key is
// never echoed back; api_key_set tells the UI whether one is stored.
func (h *Handler) settingsPayload() map[string]interface{} {
	cfg := h.config.Clone()

	return map[string]interface{}{
		"recording_mode":   cfg.RecordingMode,
		"language":         cfg.Language,
		"ui_language":      cfg.UILanguage,
		"audio_device_id":  cfg.AudioDeviceID,
		"max_record_time":  cfg.MaxRecordTime,
		"paste_split_size": cfg.PasteSplitSize,
		"server_port":      cfg.ServerPort,
		"hotkey": map[string]interface{}{
			"ctrl":  cfg.Hotkey.Ctrl,
			"shift": cfg.Hotkey.Shift,
			"alt":   cfg.Hotkey.Alt,
			"cmd":   cfg.Hotkey.Cmd,
			"key":   cfg.Hotkey.Key,
		},
		"silence": map[string]interface{}{
			"enabled":     cfg.Silence.Enabled,
			"duration_ms": cfg.Silence.DurationMS,
		},
		"transcribe": map[string]interface{}{
			"backend":         cfg.Transcribe.Backend,
			"endpoint":        cfg.Transcribe.Endpoint,
			"model":           cfg.Transcribe.Model,
			"command":         cfg.Transcribe.Command,
			"timeout_seconds": cfg.Transcribe.TimeoutSeconds,
			"api_key_set":     cfg.Transcribe.APIKey != "",
		},
		"history": map[string]interface{}{
			"enabled":        cfg.History.Enabled,
			"retention_days": cfg.History.RetentionDays,
			"max_entries":    cfg.History.MaxEntries,
		},
	}
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settingsPayload())
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.config.Update(updates); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.config.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.RLock()
	path := h.configPath
	h.mu.RUnlock()

	if err := h.config.Save(path); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save settings: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, h.settingsPayload())
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.mu.RLock()
	driver := h.audioDriver
	h.mu.RUnlock()

	var devices []audio.Device
	if driver != nil {
		var err error
		devices, err = driver.ListDevices()
		if err != nil {
			devices = nil
		}
	}
	if len(devices) == 0 {
		// Enumeration can fail before the microphone permission is granted.
		// Fall back to the system default so the UI still renders.
		devices = []audio.Device{{ID: -1, Name: "System default", IsDefault: true}}
	}

	type deviceJSON struct {
		ID        int    `json:"id"`
		Name      string `json:"name"`
		IsDefault bool   `json:"is_default"`
	}

	out := make([]deviceJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceJSON{ID: d.ID, Name: d.Name, IsDefault: d.IsDefault})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": out})
}

// handleState handles GET /api/state
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.mu.RLock()
	sp := h.sessions
	h.mu.RUnlock()

	state := "unknown"
	if sp != nil {
		state = sp.State().String()
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": state})
}

type historyEntryJSON struct {
	ID         string `json:"id"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
	PCMBytes   int    `json:"pcm_bytes"`
	StopReason string `json:"stop_reason"`
	Transcript string `json:"transcript"`
	LatencyMS  int64  `json:"transcribe_latency_ms"`
	Error      string `json:"error,omitempty"`
}

func toHistoryJSON(e history.Entry) historyEntryJSON {
	return historyEntryJSON{
		ID:         e.ID,
		StartedAt:  e.StartedAt.Format(time.RFC3339),
		DurationMS: e.Duration.Milliseconds(),
		PCMBytes:   e.PCMBytes,
		StopReason: e.StopReason,
		Transcript: e.Transcript,
		LatencyMS:  e.TranscribeLatency.Milliseconds(),
		Error:      e.Error,
	}
}

// handleHistory handles GET (list) and DELETE (clear) /api/history
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	store := h.historyDB
	h.mu.RUnlock()

	if store == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		entries, err := store.List(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list history: %v", err))
			return
		}

		out := make([]historyEntryJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, toHistoryJSON(e))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": out})

	case http.MethodDelete:
		if err := store.Clear(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to clear history: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleHistoryEntry handles DELETE /api/history/{id}
func (h *Handler) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.mu.RLock()
	store := h.historyDB
	h.mu.RUnlock()

	if store == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	id := r.URL.Path[len("/api/history/"):]
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry id")
		return
	}

	if err := store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete entry: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handlePermissions handles GET /api/permissions
func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.mu.RLock()
	pc := h.permissions
	h.mu.RUnlock()

	if pc == nil {
		writeError(w, http.StatusServiceUnavailable, "permission checker unavailable")
		return
	}

	perms := pc.CheckAllPermissions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"microphone":    perms["microphone"],
		"accessibility": perms["accessibility"],
		"all_granted":   pc.AreAllPermissionsGranted(),
	})
}

// hotkeyRequest is the payload for both validate and register
type hotkeyRequest struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"`
	Key   string `json:"key"`
}

func (h *Handler) parseHotkeyRequest(r *http.Request) (hotkeyRequest, hotkey.Config, error) {
	var req hotkeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, hotkey.Config{}, fmt.Errorf("invalid JSON body")
	}

	mode := h.config.Clone().RecordingMode
	cfg, err := hotkey.FromSettings(req.Ctrl, req.Shift, req.Alt, req.Cmd, req.Key, mode)
	if err != nil {
		return req, hotkey.Config{}, err
	}

	return req, cfg, nil
}

// handleHotkeyValidate handles POST /api/hotkey/validate
func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, cfg, err := h.parseHotkeyRequest(r)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	conflicts := hotkey.CheckConflicts(cfg.Modifiers, cfg.Key)

	type conflictJSON struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := make([]conflictJSON, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictJSON{Name: c.Name, Description: c.Description})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":     true,
		"hotkey":    hotkey.FormatHotkey(cfg.Modifiers, cfg.Key),
		"conflicts": out,
	})
}

// handleHotkeyRegister handles POST /api/hotkey/register
func (h *Handler) handleHotkeyRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, cfg, err := h.parseHotkeyRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.config.Update(map[string]interface{}{
		"hotkey": map[string]interface{}{
			"ctrl":  req.Ctrl,
			"shift": req.Shift,
			"alt":   req.Alt,
			"cmd":   req.Cmd,
			"key":   req.Key,
		},
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.RLock()
	path := h.configPath
	callback := h.onHotkeyChanged
	h.mu.RUnlock()

	if err := h.config.Save(path); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save settings: %v", err))
		return
	}

	// Saved but not applied is a partial success: the new combination takes
	// effect on restart, so report it instead of failing the request.
	if callback != nil {
		if err := callback(); err != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":  "saved",
				"warning": fmt.Sprintf("hotkey saved but re-registration failed: %v", err),
				"hotkey":  hotkey.FormatHotkey(cfg.Modifiers, cfg.Key),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "registered",
		"hotkey": hotkey.FormatHotkey(cfg.Modifiers, cfg.Key),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
