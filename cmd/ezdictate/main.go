package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yok-tottii/EzDictate/internal/api"
	"github.com/yok-tottii/EzDictate/internal/audio"
	"github.com/yok-tottii/EzDictate/internal/clipboard"
	"github.com/yok-tottii/EzDictate/internal/config"
	"github.com/yok-tottii/EzDictate/internal/encode"
	"github.com/yok-tottii/EzDictate/internal/history"
	"github.com/yok-tottii/EzDictate/internal/hotkey"
	"github.com/yok-tottii/EzDictate/internal/i18n"
	"github.com/yok-tottii/EzDictate/internal/logger"
	"github.com/yok-tottii/EzDictate/internal/metrics"
	"github.com/yok-tottii/EzDictate/internal/notification"
	"github.com/yok-tottii/EzDictate/internal/permissions"
	"github.com/yok-tottii/EzDictate/internal/server"
	"github.com/yok-tottii/EzDictate/internal/session"
	"github.com/yok-tottii/EzDictate/internal/transcribe"
	"github.com/yok-tottii/EzDictate/internal/tray"
	"github.com/yok-tottii/EzDictate/internal/wizard"
)

const version = "0.1.0"

// App holds all application state
type App struct {
	logger      *logger.Logger
	config      *config.Config
	trayMgr     *tray.Manager
	httpServer  *server.Server
	apiHandler  *api.Handler
	hotkeyMgr   *hotkey.Manager
	audioDriver audio.Driver
	audioConfig audio.Config
	sessions    *session.Manager
	transcriber transcribe.Transcriber
	clipboard   *clipboard.Manager
	historyDB   *history.Store
	metrics     *metrics.Metrics
	notifier    *notification.NotificationManager
	wizard      *wizard.SetupWizard

	micGranted bool
	accGranted bool
	isFirstRun bool
}

func init() {
	// macOS UI and CGO calls must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	app := &App{}

	loggerConfig := logger.DefaultConfig()
	var err error
	app.logger, err = logger.New(loggerConfig)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer app.logger.Close()

	app.logger.Info("EzDictate v%s starting", version)

	configPath := config.GetConfigPath()
	app.config, err = config.Load(configPath)
	if err != nil {
		app.logger.Error("failed to load config: %v", err)
		log.Fatalf("failed to load config: %v", err)
	}
	app.logger.Info("config loaded from %s", configPath)

	uiLanguage := i18n.LanguageEnglish
	if i18n.ValidateLanguage(app.config.UILanguage) {
		uiLanguage = i18n.Language(app.config.UILanguage)
	}
	i18n.GlobalTranslator = i18n.NewDefaultTranslator(uiLanguage)

	app.wizard, err = wizard.NewSetupWizard()
	if err != nil {
		app.logger.Error("failed to initialize setup wizard: %v", err)
	}
	app.isFirstRun = app.wizard != nil && app.wizard.ShouldShowWizard()

	app.metrics = metrics.New(prometheus.DefaultRegisterer)
	app.notifier = notification.NewNotificationManager("EzDictate")

	clipConfig := clipboard.DefaultConfig()
	if app.config.PasteSplitSize > 0 {
		clipConfig.SplitSize = app.config.PasteSplitSize
	}
	app.clipboard = clipboard.NewManager(clipConfig)

	if app.config.History.Enabled {
		app.historyDB, err = history.Open(context.Background(), history.Config{
			Path:          filepath.Join(config.GetDataDir(), "history.db"),
			RetentionDays: app.config.History.RetentionDays,
			MaxEntries:    app.config.History.MaxEntries,
		}, app.logger)
		if err != nil {
			app.logger.Warn("history disabled, failed to open store: %v", err)
			app.historyDB = nil
		} else {
			defer app.historyDB.Close()
		}
	}

	app.transcriber, err = buildTranscriber(app.config)
	if err != nil {
		app.logger.Error("transcription backend unavailable: %v", err)
	} else {
		defer app.transcriber.Close()
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Port = app.config.ServerPort
	app.httpServer, err = server.New(serverConfig)
	if err != nil {
		app.logger.Error("failed to create HTTP server: %v", err)
		log.Fatalf("failed to create HTTP server: %v", err)
	}

	app.apiHandler = api.New(app.config, app.wizard, app.ReloadHotkey)
	app.apiHandler.SetPermissionChecker(permissions.NewPermissionChecker())
	if app.historyDB != nil {
		app.apiHandler.SetHistoryStore(app.historyDB)
	}
	app.apiHandler.RegisterRoutes(app.httpServer.GetMux())
	app.logger.Info("API routes registered")

	app.trayMgr = tray.NewManager(tray.Config{
		OnReady:        app.onReady,
		OnSettings:     app.handleOpenSettings,
		OnHistory:      app.handleOpenHistory,
		OnDeviceChange: app.handleDeviceChange,
		OnQuit:         app.handleQuit,
	})

	app.logger.Info("starting systray")

	// Blocks until Quit
	app.trayMgr.Run()
}

// buildTranscriber creates the configured transcription backend.
func buildTranscriber(cfg *config.Config) (transcribe.Transcriber, error) {
	language := cfg.Language
	if language == "auto" {
		language = ""
	}

	switch cfg.Transcribe.Backend {
	case "exec":
		return transcribe.NewExecTranscriber(transcribe.ExecConfig{
			Command:  cfg.Transcribe.Command,
			Language: language,
		})
	default:
		return transcribe.NewRemoteClient(transcribe.RemoteConfig{
			Endpoint:      cfg.Transcribe.Endpoint,
			APIKey:        cfg.Transcribe.APIKey,
			Model:         cfg.Transcribe.Model,
			Language:      language,
			Timeout:       time.Duration(cfg.Transcribe.TimeoutSeconds) * time.Second,
			MaxRetries:    2,
			MaxConcurrent: 1,
		})
	}
}

// onReady finishes initialization once systray is up
func (a *App) onReady() {
	a.logger.Info("systray ready, initializing application")

	permChecker := permissions.NewPermissionChecker()
	perms := permChecker.CheckAllPermissions()

	a.micGranted = perms["microphone"]
	a.accGranted = perms["accessibility"]

	if a.micGranted {
		a.logger.Info("microphone permission: granted")
	} else {
		a.logger.Warn("microphone permission: denied, recording is disabled")
		a.notifier.MicrophonePermissionDenied()
	}

	if a.accGranted {
		a.logger.Info("accessibility permission: granted")
	} else {
		a.logger.Warn("accessibility permission: denied, hotkey and paste are disabled")
		a.notifier.AccessibilityPermissionDenied()
	}

	if a.micGranted {
		var err error
		a.audioDriver, err = audio.NewPortAudioDriver()
		if err != nil {
			a.logger.Error("failed to create PortAudio driver: %v", err)
		} else {
			a.audioConfig = audio.DefaultConfig()
			a.audioConfig.DeviceID = a.config.AudioDeviceID
			if err := a.audioDriver.Initialize(a.audioConfig); err != nil {
				a.logger.Error("failed to initialize audio driver: %v", err)
			} else {
				a.logger.Info("audio driver initialized, device ID %d", a.audioConfig.DeviceID)
				a.apiHandler.SetAudioDriver(a.audioDriver)
				a.refreshDeviceMenu()
			}

			encoder := &encode.WAVEncoder{
				SampleRate: a.audioConfig.SampleRate,
				Channels:   a.audioConfig.Channels,
			}
			a.sessions = session.New(session.DefaultConfig(), a.audioDriver, encoder, a.logger)
			a.sessions.OnState(a.onSessionState)
			a.sessions.OnCalibrated(a.metrics.RecordCalibration)
			a.apiHandler.SetStateProvider(a.sessions)
			go a.resultLoop()
		}
	}

	if a.accGranted {
		a.hotkeyMgr = hotkey.New()

		hotkeyConfig, err := hotkey.FromSettings(
			a.config.Hotkey.Ctrl,
			a.config.Hotkey.Shift,
			a.config.Hotkey.Alt,
			a.config.Hotkey.Cmd,
			a.config.Hotkey.Key,
			a.config.RecordingMode,
		)
		if err != nil {
			a.logger.Error("invalid hotkey settings, falling back to default: %v", err)
			if err := a.hotkeyMgr.RegisterDefault(); err != nil {
				a.logger.Error("failed to register default hotkey: %v", err)
			} else {
				go a.hotkeyEventLoop()
			}
		} else if err := a.hotkeyMgr.Register(hotkeyConfig); err != nil {
			a.logger.Error("failed to register hotkey: %v", err)
			a.notifier.SendError("EzDictate", fmt.Sprintf("Failed to register hotkey: %v", err))
		} else {
			a.logger.Info("hotkey registered: %s", hotkey.FormatHotkey(hotkeyConfig.Modifiers, hotkeyConfig.Key))
			go a.hotkeyEventLoop()
		}
	}

	if a.isFirstRun && a.wizard != nil {
		a.logger.Info("first run detected, opening settings")
		a.handleOpenSettings()
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("failed to start HTTP server: %v", err)
		a.notifier.SendError("EzDictate", "Failed to start the settings page")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		a.logger.Info("received termination signal")
		a.handleQuit()
		a.trayMgr.Quit()
	}()

	a.logger.Info("application initialized")

	fmt.Println("\n==========================================================")
	fmt.Println("EzDictate is running")
	fmt.Println("==========================================================")
	fmt.Printf("Settings page: %s\n", a.httpServer.URL())
	if a.hotkeyMgr != nil && a.hotkeyMgr.IsRunning() {
		current := a.hotkeyMgr.GetConfig()
		fmt.Printf("Hotkey: %s (%s mode)\n",
			hotkey.FormatHotkey(current.Modifiers, current.Key), a.config.RecordingMode)
	}
	fmt.Println("Quit with Ctrl+C or from the menu bar")
	fmt.Println("==========================================================")
}

// onSessionState mirrors the session state machine into the tray icon. The
// return to idle is owned by the result loop, which runs past Finalized
// while transcription is still in flight.
func (a *App) onSessionState(s session.State) {
	switch s {
	case session.Calibrating:
		a.trayMgr.SetState(tray.StateCalibrating)
	case session.Listening:
		a.trayMgr.SetState(tray.StateListening)
	case session.Stopping, session.Finalized:
		a.trayMgr.SetState(tray.StateProcessing)
	}
}

// hotkeyEventLoop drives recording from hotkey events
func (a *App) hotkeyEventLoop() {
	a.logger.Info("hotkey event loop started")

	for event := range a.hotkeyMgr.Events() {
		switch event.Type {
		case hotkey.Pressed:
			a.startSession()

		case hotkey.Released:
			a.stopSession()

		case hotkey.Tapped:
			// Hands-free: one tap starts, a second tap overrides the
			// silence detector and stops immediately
			if a.sessions != nil && a.sessions.State() == session.Idle {
				a.startSession()
			} else {
				a.stopSession()
			}
		}
	}

	a.logger.Info("hotkey event loop finished")
}

func (a *App) startSession() {
	if !a.micGranted || a.sessions == nil {
		a.logger.Warn("hotkey pressed but recording is unavailable")
		a.notifier.RecordingFailed("microphone unavailable")
		return
	}

	// Snapshot under the config lock; the settings API updates concurrently
	cfg := a.config.Clone()
	opts := session.Options{
		MaxDuration:      time.Duration(cfg.MaxRecordTime) * time.Second,
		SilenceDetection: cfg.Silence.Enabled,
		SilenceDuration:  time.Duration(cfg.Silence.DurationMS) * time.Millisecond,
	}

	if err := a.sessions.Start(opts); err != nil {
		switch {
		case err == session.ErrSessionActive:
			a.logger.Debug("start ignored, session already active")
		case err == session.ErrDeviceUnavailable:
			a.logger.Error("failed to start session: %v", err)
			a.notifier.DeviceNotFound()
		default:
			a.logger.Error("failed to start session: %v", err)
			a.notifier.RecordingFailed(err.Error())
		}
		return
	}

	a.metrics.RecordSessionStarted()
	a.logger.Info("recording session started")
}

func (a *App) stopSession() {
	if a.sessions == nil {
		return
	}
	if _, err := a.sessions.Stop(); err != nil {
		a.logger.Warn("failed to stop session: %v", err)
	}
}

// resultLoop consumes finished captures: transcribe, paste, record history.
func (a *App) resultLoop() {
	for res := range a.sessions.Results() {
		a.handleResult(res)
	}
}

func (a *App) handleResult(res *session.Result) {
	a.trayMgr.SetState(tray.StateProcessing)
	defer a.trayMgr.SetState(tray.StateIdle)

	reason := string(res.Reason)
	a.logger.Info("session %s finished: reason=%s duration=%s pcm=%d bytes",
		res.ID, reason, res.Duration, res.PCMBytes)

	a.metrics.RecordSessionFinished(reason, res.Duration, res.PCMBytes)
	a.notifier.SessionEnded(reason)

	entry := history.Entry{
		ID:         res.ID,
		StartedAt:  res.StartedAt,
		Duration:   res.Duration,
		PCMBytes:   res.PCMBytes,
		StopReason: reason,
	}

	if res.PCMBytes == 0 {
		a.logger.Warn("session %s captured no audio, skipping transcription", res.ID)
		a.appendHistory(entry)
		return
	}

	if info, err := encode.Probe(res.Blob); err != nil {
		a.logger.Warn("session %s produced an unreadable blob: %v", res.ID, err)
	} else {
		a.logger.Debug("session %s blob: %s at %d Hz, %d channel(s)",
			res.ID, info.Duration.Round(time.Millisecond), info.SampleRate, info.Channels)
	}

	if a.transcriber == nil {
		a.logger.Warn("no transcription backend configured")
		entry.Error = "no transcription backend configured"
		a.appendHistory(entry)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := a.transcriber.Transcribe(ctx, res.Blob, res.ID+".wav")
	a.metrics.RecordTranscription(result.Latency, err)
	if err != nil {
		a.logger.Error("transcription failed for session %s: %v", res.ID, err)
		entry.Error = err.Error()
		a.appendHistory(entry)
		a.notifier.TranscriptionFailed(err.Error())
		return
	}

	entry.Transcript = result.Text
	entry.TranscribeLatency = result.Latency
	a.logger.Info("transcription finished for session %s in %s", res.ID, result.Latency)

	if result.Text == "" {
		a.logger.Warn("transcription result is empty for session %s", res.ID)
		a.appendHistory(entry)
		return
	}

	if !a.accGranted {
		a.logger.Warn("accessibility permission missing, transcript not pasted")
		a.appendHistory(entry)
		return
	}

	pasteErr := a.clipboard.SafePasteWithSplit(result.Text)
	a.metrics.RecordPaste(pasteErr)
	if pasteErr != nil {
		a.logger.Error("paste failed for session %s: %v", res.ID, pasteErr)
		a.notifier.SendError("EzDictate", fmt.Sprintf("Paste failed: %v", pasteErr))
	} else {
		a.notifier.TranscriptionComplete()
	}

	a.appendHistory(entry)
}

func (a *App) appendHistory(entry history.Entry) {
	if a.historyDB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.historyDB.Append(ctx, entry); err != nil {
		a.logger.Warn("failed to record session history: %v", err)
	}
}

// refreshDeviceMenu fills the tray device submenu from the live driver
func (a *App) refreshDeviceMenu() {
	devices, err := a.audioDriver.ListDevices()
	if err != nil {
		a.logger.Warn("failed to enumerate audio devices: %v", err)
		return
	}

	items := make([]tray.Device, 0, len(devices))
	for _, d := range devices {
		items = append(items, tray.Device{
			ID:        d.ID,
			Name:      d.Name,
			IsDefault: d.IsDefault,
			IsCurrent: d.ID == a.config.AudioDeviceID,
		})
	}
	a.trayMgr.UpdateDeviceMenu(items)
}

// handleDeviceChange switches the capture device from the tray menu
func (a *App) handleDeviceChange(deviceID int) {
	a.logger.Info("device change requested: %d", deviceID)

	if a.sessions != nil && a.sessions.State() != session.Idle {
		a.logger.Warn("device change refused while a session is active")
		a.notifier.SendWarning("EzDictate", "Stop the current recording before switching devices")
		return
	}

	if err := a.config.Update(map[string]interface{}{"audio_device_id": float64(deviceID)}); err != nil {
		a.logger.Error("failed to update device setting: %v", err)
		return
	}
	if err := a.config.Save(config.GetConfigPath()); err != nil {
		a.logger.Warn("failed to persist device setting: %v", err)
	}

	if a.audioDriver != nil {
		a.audioConfig.DeviceID = deviceID
		if err := a.audioDriver.Initialize(a.audioConfig); err != nil {
			a.logger.Error("failed to re-initialize audio driver: %v", err)
			a.notifier.DeviceNotFound()
			return
		}
	}

	a.refreshDeviceMenu()
	a.logger.Info("audio device switched to %d", deviceID)
}

// handleOpenSettings opens the settings page in the default browser
func (a *App) handleOpenSettings() {
	a.logger.Info("opening settings page")

	if !a.httpServer.IsRunning() {
		a.logger.Error("HTTP server is not running")
		a.notifier.SendError("EzDictate", "Settings page unavailable, please restart the application")
		return
	}

	url := a.httpServer.URL()

	go func() {
		cmd := exec.Command("open", url)
		if err := cmd.Run(); err != nil {
			a.logger.Error("failed to open browser: %v", err)
			fmt.Printf("\nSettings page: %s\n\n", url)
		}
	}()
}

// handleOpenHistory opens the settings page scrolled to the history section
func (a *App) handleOpenHistory() {
	a.logger.Info("opening dictation history")

	if !a.httpServer.IsRunning() {
		a.notifier.SendError("EzDictate", "Settings page unavailable, please restart the application")
		return
	}

	url := a.httpServer.URL() + "/#history"
	go exec.Command("open", url).Run()
}

// handleQuit shuts everything down
func (a *App) handleQuit() {
	a.logger.Info("quit requested")

	if a.sessions != nil {
		if err := a.sessions.Close(); err != nil {
			a.logger.Warn("failed to close session manager: %v", err)
		}
	}

	if a.httpServer != nil && a.httpServer.IsRunning() {
		if err := a.httpServer.Stop(); err != nil {
			a.logger.Error("failed to stop HTTP server: %v", err)
		}
	}

	if a.hotkeyMgr != nil {
		a.hotkeyMgr.Close()
	}

	if a.audioDriver != nil {
		a.audioDriver.Close()
	}

	a.logger.Info("application terminated")
}

// ReloadHotkey re-registers the hotkey after the settings API saved a new
// combination. On failure the previous combination is restored.
func (a *App) ReloadHotkey() error {
	a.logger.Info("hotkey re-registration requested")

	if !a.accGranted {
		return fmt.Errorf("accessibility permission not granted")
	}

	if a.hotkeyMgr == nil {
		return fmt.Errorf("hotkey manager not initialized")
	}

	// The settings API mutates the shared config in place before invoking
	// this callback, so a snapshot of it already carries the new combination.
	snapshot := a.config.Clone()

	newConfig, err := hotkey.FromSettings(
		snapshot.Hotkey.Ctrl,
		snapshot.Hotkey.Shift,
		snapshot.Hotkey.Alt,
		snapshot.Hotkey.Cmd,
		snapshot.Hotkey.Key,
		snapshot.RecordingMode,
	)
	if err != nil {
		return fmt.Errorf("invalid hotkey settings: %w", err)
	}

	var oldConfig hotkey.Config
	needsRollback := false

	if a.hotkeyMgr.IsRunning() {
		oldConfig = a.hotkeyMgr.GetConfig()
		needsRollback = true

		if err := a.hotkeyMgr.Close(); err != nil {
			a.logger.Error("failed to unregister old hotkey: %v", err)
			return fmt.Errorf("failed to unregister old hotkey: %w", err)
		}
		// Let the previous event loop drain before re-registering
		time.Sleep(200 * time.Millisecond)
	}

	if err := a.hotkeyMgr.Register(newConfig); err != nil {
		a.logger.Error("failed to register new hotkey: %v", err)

		if needsRollback {
			a.logger.Warn("rolling back to previous hotkey")
			if rollbackErr := a.hotkeyMgr.Register(oldConfig); rollbackErr != nil {
				a.logger.Error("rollback failed: %v", rollbackErr)
				a.notifier.SendError("EzDictate", "Hotkey registration failed, please restart the application")
				return fmt.Errorf("failed to register new hotkey and rollback failed: %w, rollback error: %v", err, rollbackErr)
			}
			go a.hotkeyEventLoop()
		}

		return fmt.Errorf("failed to register new hotkey: %w", err)
	}

	go a.hotkeyEventLoop()

	formatted := hotkey.FormatHotkey(newConfig.Modifiers, newConfig.Key)
	a.logger.Info("hotkey re-registered: %s", formatted)
	a.notifier.SendInfo("EzDictate", fmt.Sprintf("New hotkey: %s", formatted))

	return nil
}
