package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrShareUnavailable is the explicit "not available on this device"
// failure; sharing never fails silently.
var ErrShareUnavailable = errors.New("compartilhamento não disponível neste dispositivo")

// openerCommands hand a file to the desktop environment's handler.
var openerCommands = []string{"xdg-open", "open"}

// SystemShare implements the share target over the OS opener.
type SystemShare struct {
	// Dir receives intermediate files for text shares. Empty means the
	// system temp dir.
	Dir string
}

// ShareText writes the text to a temporary file and opens it with the
// system handler.
func (s SystemShare) ShareText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "medata-transcricao.txt")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("falha ao preparar texto para compartilhar: %w", err)
	}
	return s.ShareFile(ctx, path)
}

// ShareFile opens the file with the first available system opener.
func (s SystemShare) ShareFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("arquivo para compartilhar não encontrado: %w", err)
	}
	for _, opener := range openerCommands {
		if _, err := exec.LookPath(opener); err != nil {
			continue
		}
		if err := exec.CommandContext(ctx, opener, path).Run(); err != nil {
			return fmt.Errorf("falha ao abrir %s: %w", path, err)
		}
		return nil
	}
	return ErrShareUnavailable
}
