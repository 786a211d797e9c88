package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"medata/internal/ports"
)

// ErrEmptyCapture is returned when the finalized recording is zero bytes.
var ErrEmptyCapture = ports.ErrEmptyCapture

// FFMPEGCapture records microphone audio to a local .m4a file using an
// ffmpeg subprocess.
type FFMPEGCapture struct {
	command string
	outDir  string
}

func NewFFMPEGCapture(command, outDir string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, outDir: outDir}
}

// RequestPermission verifies the capture backend is usable. A missing
// recorder binary is surfaced the same way a denied platform permission
// would be.
func (c *FFMPEGCapture) RequestPermission(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(c.command); err != nil {
		return fmt.Errorf("acesso ao microfone indisponível (%s não encontrado): %w", c.command, err)
	}
	return nil
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	outDir := c.outDir
	if outDir == "" {
		outDir = os.TempDir()
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create recording dir: %w", err)
	}
	outPath := filepath.Join(outDir, fmt.Sprintf("gravacao-%d.m4a", time.Now().UnixMilli()))

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "aac",
		"-y",
		outPath,
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		outPath: outPath,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegSession struct {
	outPath string
	stderr  *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

// Stop finalizes the capture and validates the resulting file. A
// zero-byte file is a terminal error; no transcription should follow.
func (s *ffmpegSession) Stop() (string, error) {
	s.shutdown()
	if s.stopErr != nil {
		return "", s.stopErr
	}

	info, err := os.Stat(s.outPath)
	if err != nil {
		return "", fmt.Errorf("arquivo de gravação não encontrado: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(s.outPath)
		return "", ErrEmptyCapture
	}
	return s.outPath, nil
}

// Abort discards the capture and removes any partial file.
func (s *ffmpegSession) Abort() error {
	s.shutdown()
	if err := os.Remove(s.outPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *ffmpegSession) shutdown() {
	s.stopOnce.Do(func() {
		if s.process != nil {
			// SIGINT lets ffmpeg finalize the container trailer.
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(2 * time.Second):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
