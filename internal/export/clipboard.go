package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrNothingToCopy is returned instead of copying an empty string.
	ErrNothingToCopy = errors.New("nenhuma transcrição para copiar")
	// ErrClipboardUnavailable is returned when no clipboard tool exists.
	ErrClipboardUnavailable = errors.New("área de transferência indisponível neste dispositivo")
)

// clipboardCommands are tried in order; the first available tool wins.
var clipboardCommands = [][]string{
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
	{"pbcopy"},
}

// CommandClipboard writes text through the first clipboard tool present
// on the machine.
type CommandClipboard struct{}

func (CommandClipboard) SetText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}
	for _, command := range clipboardCommands {
		if _, err := exec.LookPath(command[0]); err != nil {
			continue
		}
		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = strings.NewReader(text)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("falha ao copiar com %s: %w", command[0], err)
		}
		return nil
	}
	return ErrClipboardUnavailable
}
