// Package clipboard delivers transcripts to the frontmost application via
// paste, restoring whatever the user had on the clipboard afterwards.
package clipboard

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa
#import <Cocoa/Cocoa.h>

int get_pasteboard_change_count() {
    return (int)[[NSPasteboard generalPasteboard] changeCount];
}
*/
import "C"
import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// Manager manages clipboard operations with safe restoration
type Manager struct {
	savedChangeCount int
	savedContent     string
	restoreTimeout   time.Duration
	splitSize        int
	splitInterval    time.Duration
}

// Config holds clipboard manager configuration
type Config struct {
	RestoreTimeout time.Duration // Timeout for clipboard restoration (default: 500ms)
	SplitSize      int           // Maximum characters per paste operation (default: 500)
	SplitInterval  time.Duration // Interval between split pastes (default: 50ms)
}

// DefaultConfig returns the default clipboard configuration
func DefaultConfig() Config {
	return Config{
		RestoreTimeout: 500 * time.Millisecond,
		SplitSize:      500,
		SplitInterval:  50 * time.Millisecond,
	}
}

// NewManager creates a new clipboard manager
func NewManager(config Config) *Manager {
	return &Manager{
		restoreTimeout: config.RestoreTimeout,
		splitSize:      config.SplitSize,
		splitInterval:  config.SplitInterval,
	}
}

// GetChangeCount returns the current pasteboard change count
func GetChangeCount() int {
	return int(C.get_pasteboard_change_count())
}

// SaveClipboard saves the current clipboard state
func (m *Manager) SaveClipboard() error {
	m.savedChangeCount = GetChangeCount()
	content, err := clipboard.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read clipboard: %w", err)
	}
	m.savedContent = content
	return nil
}

// RestoreClipboard restores the clipboard if it hasn't been modified
// externally. The change count must have advanced by exactly one (our own
// paste); anything else means the user raced us and their content wins.
func (m *Manager) RestoreClipboard() error {
	time.Sleep(m.restoreTimeout)

	currentChangeCount := GetChangeCount()
	if currentChangeCount == m.savedChangeCount+1 {
		if err := clipboard.WriteAll(m.savedContent); err != nil {
			return fmt.Errorf("failed to restore clipboard: %w", err)
		}
	}

	return nil
}

// SafePaste pastes text to the active application with safe clipboard restoration
func (m *Manager) SafePaste(text string) error {
	if err := m.SaveClipboard(); err != nil {
		return fmt.Errorf("failed to save clipboard: %w", err)
	}

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	// Give the pasteboard a moment before synthesizing the keystroke
	time.Sleep(10 * time.Millisecond)

	robotgo.KeyTap("v", "cmd")

	return m.RestoreClipboard()
}

// SafePasteWithSplit pastes text with automatic splitting for long texts
func (m *Manager) SafePasteWithSplit(text string) error {
	if len(text) <= m.splitSize {
		return m.SafePaste(text)
	}

	chunks := m.splitText(text)

	for i, chunk := range chunks {
		if err := m.SafePaste(chunk); err != nil {
			return fmt.Errorf("failed to paste chunk %d: %w", i, err)
		}

		if i < len(chunks)-1 {
			time.Sleep(m.splitInterval)
		}
	}

	return nil
}

// splitText splits text into chunks of maximum splitSize characters
// Tries to split at sentence boundaries (。、. ,) when possible
func (m *Manager) splitText(text string) []string {
	if len(text) <= m.splitSize {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	start := 0

	for start < len(runes) {
		end := start + m.splitSize
		if end > len(runes) {
			end = len(runes)
		}

		// Look for sentence boundaries in the last 50 characters
		if end < len(runes) {
			searchStart := end - 50
			if searchStart < start {
				searchStart = start
			}

			bestSplit := -1
			for i := end - 1; i >= searchStart; i-- {
				ch := runes[i]
				if ch == '。' || ch == '、' || ch == '.' || ch == ',' || ch == '\n' {
					bestSplit = i + 1
					break
				}
			}

			if bestSplit != -1 {
				end = bestSplit
			}
		}

		chunks = append(chunks, string(runes[start:end]))
		start = end
	}

	return chunks
}

// GetClipboardContent returns the current clipboard content
func GetClipboardContent() (string, error) {
	return clipboard.ReadAll()
}

// SetClipboardContent sets the clipboard content
func SetClipboardContent(text string) error {
	return clipboard.WriteAll(text)
}

// SplitTextBySentences is a helper function to split text by sentences
// This is useful for preprocessing before pasting
func SplitTextBySentences(text string) []string {
	delimiters := []string{"。", ".", "！", "!", "？", "?"}

	sentences := []string{text}

	for _, delimiter := range delimiters {
		var newSentences []string
		for _, sentence := range sentences {
			parts := strings.Split(sentence, delimiter)
			for i, part := range parts {
				part = strings.TrimSpace(part)
				if part != "" {
					if i < len(parts)-1 {
						part += delimiter
					}
					newSentences = append(newSentences, part)
				}
			}
		}
		sentences = newSentences
	}

	return sentences
}
