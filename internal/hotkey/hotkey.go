package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// RecordingMode defines how the hotkey triggers recording
type RecordingMode int

const (
	// HandsFree mode: tap to start; the session ends itself on silence,
	// another tap is a manual stop
	HandsFree RecordingMode = iota
	// PressToHold mode: record while key is held down
	PressToHold
	// Toggle mode: first press starts, second press stops
	Toggle
)

// ParseMode converts a configuration string into a RecordingMode
func ParseMode(s string) (RecordingMode, error) {
	switch s {
	case "hands-free":
		return HandsFree, nil
	case "press-to-hold":
		return PressToHold, nil
	case "toggle":
		return Toggle, nil
	}
	return HandsFree, fmt.Errorf("unknown recording mode: %s", s)
}

// EventType represents the type of hotkey event
type EventType int

const (
	// Pressed indicates recording should start
	Pressed EventType = iota
	// Released indicates recording should stop
	Released
	// Tapped indicates a hands-free tap; the consumer decides whether it
	// starts a session or manually stops the running one
	Tapped
)

// Event represents a hotkey event
type Event struct {
	Type EventType
}

// Config holds hotkey configuration
type Config struct {
	Modifiers []hotkey.Modifier
	Key       hotkey.Key
	Mode      RecordingMode
}

// FromSettings builds a Config from the flat settings representation.
func FromSettings(ctrl, shift, alt, cmd bool, key string, mode string) (Config, error) {
	parsedMode, err := ParseMode(mode)
	if err != nil {
		return Config{}, err
	}

	parsedKey, err := keyFromString(key)
	if err != nil {
		return Config{}, err
	}

	var mods []hotkey.Modifier
	if ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if shift {
		mods = append(mods, hotkey.ModShift)
	}
	if alt {
		mods = append(mods, hotkey.ModOption)
	}
	if cmd {
		mods = append(mods, hotkey.ModCmd)
	}
	if len(mods) == 0 {
		return Config{}, fmt.Errorf("hotkey needs at least one modifier")
	}

	return Config{Modifiers: mods, Key: parsedKey, Mode: parsedMode}, nil
}

// dispatcher turns raw keydown/keyup pairs into recording events according
// to the active mode. Kept separate from the OS listener so the mapping is
// testable without registering a real hotkey.
type dispatcher struct {
	mode    RecordingMode
	toggled bool
}

func (d *dispatcher) keydown() (Event, bool) {
	switch d.mode {
	case PressToHold:
		return Event{Type: Pressed}, true
	case Toggle:
		if !d.toggled {
			d.toggled = true
			return Event{Type: Pressed}, true
		}
		d.toggled = false
		return Event{Type: Released}, true
	default: // HandsFree
		return Event{Type: Tapped}, true
	}
}

func (d *dispatcher) keyup() (Event, bool) {
	if d.mode == PressToHold {
		return Event{Type: Released}, true
	}
	return Event{}, false
}

// Manager manages global hotkey registration and events
type Manager struct {
	hk        *hotkey.Hotkey
	config    Config
	eventChan chan Event
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool
}

// New creates a new hotkey manager with default configuration
// Default: Ctrl+Option+Space, hands-free
func New() *Manager {
	return &Manager{
		config: Config{
			Modifiers: []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModOption},
			Key:       hotkey.KeySpace,
			Mode:      HandsFree,
		},
		eventChan: make(chan Event, 10),
		stopChan:  make(chan struct{}),
	}
}

// Register registers the hotkey with the system
func (m *Manager) Register(config Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hotkey is already running, call Close() first")
	}

	m.config = config

	// Recreate channels (they may have been closed by a previous Close())
	m.stopChan = make(chan struct{})
	m.eventChan = make(chan Event, 10)

	hk := hotkey.New(m.config.Modifiers, m.config.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	m.hk = hk
	m.running = true

	m.wg.Add(1)
	go m.listen()

	return nil
}

// RegisterDefault registers the default hotkey (Ctrl+Option+Space)
func (m *Manager) RegisterDefault() error {
	return m.Register(m.config)
}

// listen monitors hotkey events and sends them to the event channel
func (m *Manager) listen() {
	defer m.wg.Done()

	d := dispatcher{mode: m.config.Mode}

	for {
		select {
		case <-m.hk.Keydown():
			if ev, ok := d.keydown(); ok {
				m.eventChan <- ev
			}

		case <-m.hk.Keyup():
			if ev, ok := d.keyup(); ok {
				m.eventChan <- ev
			}

		case <-m.stopChan:
			return
		}
	}
}

// Events returns the event channel for receiving hotkey events
func (m *Manager) Events() <-chan Event {
	return m.eventChan
}

// Close unregisters the hotkey and stops listening
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	var unregisterErr error

	close(m.stopChan)
	m.wg.Wait()

	// Cleanup always runs even if Unregister fails, so a later
	// Register() can succeed.
	if m.hk != nil {
		if err := m.hk.Unregister(); err != nil {
			unregisterErr = fmt.Errorf("failed to unregister hotkey: %w", err)
		}
	}

	if m.eventChan != nil {
		close(m.eventChan)
		m.eventChan = nil
	}

	m.running = false

	return unregisterErr
}

// IsRunning returns whether the hotkey is currently registered and running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// GetConfig returns a deep copy of the current hotkey configuration
// to prevent callers from modifying the Manager's internal state
func (m *Manager) GetConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()

	configCopy := m.config
	if m.config.Modifiers != nil {
		configCopy.Modifiers = make([]hotkey.Modifier, len(m.config.Modifiers))
		copy(configCopy.Modifiers, m.config.Modifiers)
	}

	return configCopy
}
