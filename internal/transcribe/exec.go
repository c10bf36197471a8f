package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	shellwords "github.com/mattn/go-shellwords"
)

// ExecConfig configures the command-line transcription backend.
type ExecConfig struct {
	// Command is the program with its fixed arguments, shell-quoted.
	// The audio path is appended as "--audio <file>".
	Command string
	// Language is passed as "--language" when set
	Language string
}

// ExecTranscriber runs a local speech-to-text program per blob. The command
// must print JSON {"text": "..."} on stdout. One invocation at a time.
type ExecTranscriber struct {
	cmd []string
	cfg ExecConfig
	mu  sync.Mutex
}

type execOutput struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// NewExecTranscriber parses the configured command line.
func NewExecTranscriber(cfg ExecConfig) (*ExecTranscriber, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse transcribe command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("transcribe command is empty")
	}
	return &ExecTranscriber{cmd: args, cfg: cfg}, nil
}

// Transcribe writes the blob to a temp file and runs the command on it.
func (t *ExecTranscriber) Transcribe(ctx context.Context, blob []byte, filename string) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	file, err := os.CreateTemp(os.TempDir(), "ezdictate_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if _, err := file.Write(blob); err != nil {
		return Result{}, fmt.Errorf("write temp audio: %w", err)
	}
	if err := file.Sync(); err != nil {
		return Result{}, fmt.Errorf("flush temp audio: %w", err)
	}

	cmdArgs := append([]string{}, t.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if t.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", t.cfg.Language)
	}

	start := time.Now()
	command := exec.CommandContext(ctx, t.cmd[0], cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("transcribe command failed: %w: %s", err, stderr.String())
	}

	var parsed execOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return Result{}, fmt.Errorf("decode transcribe output: %w", err)
	}
	return Result{
		Text:     strings.TrimSpace(parsed.Text),
		Language: parsed.Language,
		Latency:  time.Since(start),
	}, nil
}

// Close implements Transcriber.
func (t *ExecTranscriber) Close() error { return nil }
