package notification

import (
	"fmt"
	"os/exec"

	"github.com/gen2brain/beeep"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	// TypeInfo is an informational notification
	TypeInfo NotificationType = "info"
	// TypeWarning is a warning notification
	TypeWarning NotificationType = "warning"
	// TypeError is an error notification
	TypeError NotificationType = "error"
	// TypeSuccess is a success notification
	TypeSuccess NotificationType = "success"
)

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	AppName string
}

// NotificationManager handles sending notifications to the user
type NotificationManager struct {
	appName string
}

// NewNotificationManager creates a new notification manager
func NewNotificationManager(appName string) *NotificationManager {
	return &NotificationManager{
		appName: appName,
	}
}

// Send delivers a notification to the user. beeep is tried first; on macOS
// it can fail without a bundled app identity, in which case the osascript
// notification center route is used instead.
func (nm *NotificationManager) Send(notification *Notification) error {
	if notification == nil {
		return fmt.Errorf("notification cannot be nil")
	}

	if err := beeep.Notify(notification.Title, notification.Message, ""); err == nil {
		return nil
	}

	script := fmt.Sprintf(
		`display notification "%s" with title "%s"`,
		notification.Message,
		notification.Title,
	)

	cmd := exec.Command("osascript", "-e", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

// SendInfo sends an informational notification
func (nm *NotificationManager) SendInfo(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeInfo,
	})
}

// SendWarning sends a warning notification
func (nm *NotificationManager) SendWarning(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeWarning,
	})
}

// SendError sends an error notification
func (nm *NotificationManager) SendError(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeError,
	})
}

// SendSuccess sends a success notification
func (nm *NotificationManager) SendSuccess(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeSuccess,
	})
}

// RecordingStarted sends a notification that recording has started
func (nm *NotificationManager) RecordingStarted() error {
	return nm.SendInfo(nm.appName, "Recording started")
}

// SessionEnded sends a notification describing why a session stopped
func (nm *NotificationManager) SessionEnded(reason string) error {
	switch reason {
	case "silence":
		return nm.SendInfo(nm.appName, "Recording stopped: silence detected")
	case "duration-limit":
		return nm.SendWarning(nm.appName, "Recording stopped: maximum duration reached")
	case "size-limit":
		return nm.SendWarning(nm.appName, "Recording stopped: capture size limit reached")
	case "device-lost":
		return nm.SendError(nm.appName, "Recording stopped: audio device was lost")
	default:
		return nm.SendInfo(nm.appName, "Recording stopped")
	}
}

// TranscriptionComplete sends a notification that transcription is complete
func (nm *NotificationManager) TranscriptionComplete() error {
	return nm.SendSuccess(nm.appName, "Transcription complete, text pasted")
}

// TranscriptionFailed sends a notification that transcription failed
func (nm *NotificationManager) TranscriptionFailed(reason string) error {
	message := "Transcription failed"
	if reason != "" {
		message += ": " + reason
	}
	return nm.SendError(nm.appName, message)
}

// RecordingFailed sends a notification that recording failed
func (nm *NotificationManager) RecordingFailed(reason string) error {
	message := "Recording failed"
	if reason != "" {
		message += ": " + reason
	}
	return nm.SendError(nm.appName, message)
}

// MicrophonePermissionDenied sends a notification that microphone permission is denied
func (nm *NotificationManager) MicrophonePermissionDenied() error {
	return nm.SendError(
		nm.appName,
		"Microphone access denied. Please allow it in System Settings.",
	)
}

// AccessibilityPermissionDenied sends a notification that accessibility permission is denied
func (nm *NotificationManager) AccessibilityPermissionDenied() error {
	return nm.SendError(
		nm.appName,
		"Accessibility permission denied. Please allow it in System Settings.",
	)
}

// DeviceNotFound sends a notification that audio device is not found
func (nm *NotificationManager) DeviceNotFound() error {
	return nm.SendError(
		nm.appName,
		"No audio input device found. Please reconnect a microphone.",
	)
}
