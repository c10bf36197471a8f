// Package tray renders the menu bar presence: a state-colored icon plus the
// settings, device and history menu entries.
package tray

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/yok-tottii/EzDictate/internal/i18n"
)

// State represents the current application state shown in the menu bar
type State int

const (
	// StateIdle means no capture is running
	StateIdle State = iota
	// StateCalibrating means a session started and is measuring the noise floor
	StateCalibrating
	// StateListening means a capture is live
	StateListening
	// StateProcessing means the capture ended and transcription is in flight
	StateProcessing
)

// Manager manages the system tray icon and menu
type Manager struct {
	stateMutex      sync.RWMutex
	state           State
	onReadyCallback func()
	onSettings      func()
	onHistory       func()
	onDeviceChange  func(deviceID int) // Called when user selects a device
	onQuit          func()

	menuSettings      *systray.MenuItem
	menuDevices       *systray.MenuItem // Parent menu for device selection
	menuHistory       *systray.MenuItem
	menuQuit          *systray.MenuItem
	deviceMenuItems   []*systray.MenuItem  // Device submenu items
	deviceCancelFuncs []context.CancelFunc // Cancel functions for device menu goroutines

	// Icon cache
	iconIdle      []byte
	iconListening []byte
	iconBusy      []byte
}

// Config holds tray manager configuration
type Config struct {
	OnReady        func() // Called when systray is ready for initialization
	OnSettings     func()
	OnHistory      func()
	OnDeviceChange func(deviceID int) // Called when user selects a device
	OnQuit         func()
}

// NewManager creates a new tray manager
func NewManager(config Config) *Manager {
	m := &Manager{
		state:           StateIdle,
		onReadyCallback: config.OnReady,
		onSettings:      config.OnSettings,
		onHistory:       config.OnHistory,
		onDeviceChange:  config.OnDeviceChange,
		onQuit:          config.OnQuit,
	}

	// Load icons once at initialization
	m.iconIdle = loadIconData("mic_idle.png", getIdleFallback())
	m.iconListening = loadIconData("mic_listening.png", getListeningFallback())
	m.iconBusy = loadIconData("mic_busy.png", getBusyFallback())

	return m
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// onReady is called when systray is ready
func (m *Manager) onReady() {
	// Set initial icon and tooltip
	m.updateIcon()
	systray.SetTooltip("EzDictate")

	// Add menu items
	m.menuSettings = systray.AddMenuItem(menuLabel("menu.settings", "Open Settings..."), "Open the settings page")
	m.menuDevices = systray.AddMenuItem(menuLabel("menu.devices", "Input Device"), "Select the input device")
	m.menuHistory = systray.AddMenuItem(menuLabel("menu.history", "Dictation History"), "Show past dictation sessions")

	systray.AddSeparator()

	m.menuQuit = systray.AddMenuItem(menuLabel("menu.quit", "Quit"), "Quit EzDictate")

	// Start event loop
	go m.handleMenuEvents()

	// Call the OnReady callback if provided
	if m.onReadyCallback != nil {
		m.onReadyCallback()
	}
}

// onExit is called when systray is exiting
func (m *Manager) onExit() {
	// Cleanup if needed
}

// handleMenuEvents handles menu item clicks
func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuSettings.ClickedCh:
			if m.onSettings != nil {
				m.onSettings()
			}
		case <-m.menuHistory.ClickedCh:
			if m.onHistory != nil {
				m.onHistory()
			}
		case <-m.menuQuit.ClickedCh:
			if m.onQuit != nil {
				m.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

// SetState updates the tray icon based on the current state
func (m *Manager) SetState(state State) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.state = state
	m.updateIcon()
}

// GetState returns the currently displayed state
func (m *Manager) GetState() State {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state
}

// menuLabel resolves a translated label, falling back to English when no
// translator has been installed (tests, early startup).
func menuLabel(key, fallback string) string {
	if text := i18n.T(key); text != key {
		return text
	}
	return fallback
}

// updateIcon updates the tray icon based on the current state
func (m *Manager) updateIcon() {
	switch m.state {
	case StateIdle:
		systray.SetIcon(m.iconIdle)
		systray.SetTooltip("EzDictate - " + menuLabel("status.idle", "Idle"))
	case StateCalibrating:
		systray.SetIcon(m.iconBusy)
		systray.SetTooltip("EzDictate - " + menuLabel("status.calibrating", "Calibrating"))
	case StateListening:
		systray.SetIcon(m.iconListening)
		systray.SetTooltip("EzDictate - " + menuLabel("status.listening", "Listening"))
	case StateProcessing:
		systray.SetIcon(m.iconBusy)
		systray.SetTooltip("EzDictate - " + menuLabel("status.processing", "Transcribing"))
	}
}

// Device represents an audio device for the menu
type Device struct {
	ID        int
	Name      string
	IsDefault bool
	IsCurrent bool
}

// UpdateDeviceMenu updates the device submenu with available devices
func (m *Manager) UpdateDeviceMenu(devices []Device) {
	// Cancel existing device menu goroutines
	for _, cancel := range m.deviceCancelFuncs {
		if cancel != nil {
			cancel()
		}
	}
	m.deviceCancelFuncs = nil

	// Remove existing device menu items
	for _, item := range m.deviceMenuItems {
		item.Hide()
	}
	m.deviceMenuItems = nil

	// Add new device menu items
	for _, device := range devices {
		// Create closure to capture device ID
		deviceID := device.ID
		deviceName := device.Name

		// Add checkmark if current device
		prefix := ""
		if device.IsCurrent {
			prefix = "✓ "
		}

		// Add tooltip for default device
		tooltip := ""
		if device.IsDefault {
			tooltip = "System default device"
		}

		menuItem := m.menuDevices.AddSubMenuItem(prefix+deviceName, tooltip)
		m.deviceMenuItems = append(m.deviceMenuItems, menuItem)

		// Create context for this goroutine
		ctx, cancel := context.WithCancel(context.Background())
		m.deviceCancelFuncs = append(m.deviceCancelFuncs, cancel)

		// Handle device selection in a goroutine with cancellation
		go func(id int, item *systray.MenuItem, ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					// Context cancelled, exit goroutine
					return
				case <-item.ClickedCh:
					if m.onDeviceChange != nil {
						m.onDeviceChange(id)
					}
				}
			}
		}(deviceID, menuItem, ctx)
	}
}

// Quit quits the system tray
func (m *Manager) Quit() {
	systray.Quit()
}

// loadIconData loads an icon from the assets directory
// If the file cannot be loaded, it returns a fallback placeholder icon
func loadIconData(filename string, fallback []byte) []byte {
	// Get executable directory
	exe, err := os.Executable()
	if err != nil {
		log.Printf("warning: could not resolve executable path: %v", err)
		return fallback
	}
	exeDir := filepath.Dir(exe)

	// Try to load icon from assets/icon/ relative to executable
	iconPath := filepath.Join(exeDir, "assets", "icon", filename)
	data, err := os.ReadFile(iconPath)
	if err != nil {
		log.Printf("warning: could not load icon file (%s): %v", iconPath, err)
		return fallback
	}

	return data
}

// getIdleFallback returns the fallback icon data for idle state
func getIdleFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x18, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xff, 0xff, 0x3f, 0x03, 0x00, 0x00,
		0x00, 0xff, 0xff, 0x03, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60,
		0x82,
	}
}

// getListeningFallback returns the fallback icon data for the listening state
func getListeningFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xc0, 0xc0, 0xc0, 0xf0, 0x9f,
		0x81, 0x81, 0x81, 0x81, 0xff, 0x19, 0x18, 0x18,
		0x18, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0x03,
		0x00, 0x0c, 0x10, 0x02, 0x01, 0x8b, 0xd5, 0xf8,
		0x23, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}
}

// getBusyFallback returns the fallback icon data for calibrating/transcribing
func getBusyFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x19, 0x74, 0x45, 0x58,
		0x74, 0x53, 0x6f, 0x66, 0x74, 0x77, 0x61, 0x72,
		0x65, 0x00, 0x41, 0x64, 0x6f, 0x62, 0x65, 0x20,
		0x49, 0x6d, 0x61, 0x67, 0x65, 0x52, 0x65, 0x61,
		0x64, 0x79, 0x71, 0xc9, 0x65, 0x3c, 0x00, 0x00,
		0x00, 0x20, 0x49, 0x44, 0x41, 0x54, 0x78, 0xda,
		0x62, 0xfc, 0xcf, 0xf0, 0x9f, 0xc1, 0xc8, 0xc0,
		0xc0, 0xc0, 0xff, 0x0c, 0x0c, 0x0c, 0xfc, 0xcf,
		0xc0, 0xc0, 0xc0, 0x00, 0x00, 0x00, 0x00, 0xff,
		0xff, 0x03, 0x00, 0x0c, 0x50, 0x02, 0x01, 0x3e,
		0x0a, 0xe4, 0x5b, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
}
