package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"medata/internal/domain"
)

// consoleEvents surfaces pipeline events on the terminal and resolves
// confirmations by prompting on stdin.
type consoleEvents struct {
	in *bufio.Reader
}

func newConsoleEvents() *consoleEvents {
	return &consoleEvents{in: bufio.NewReader(os.Stdin)}
}

func (e *consoleEvents) PipelineStateChanged(state domain.PipelineState, reason domain.StateReason) {
	switch state {
	case domain.StateRecording:
		fmt.Println("[gravacao] microfone aberto")
	case domain.StateTranscribing:
		fmt.Println("[gravacao] transcrevendo...")
	}
}

func (e *consoleEvents) PipelineError(code domain.ErrorCode, detail string) {
	fmt.Printf("[%s] %s\n", code, detail)
}

func (e *consoleEvents) ConfirmMicrophoneUse(ctx context.Context) bool {
	return e.confirm("O microfone será usado para gravar a consulta. Continuar? [s/N] ")
}

func (e *consoleEvents) ConfirmLocationCapture(ctx context.Context) bool {
	return e.confirm("Anexar a localização atual ao registro? [s/N] ")
}

func (e *consoleEvents) confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := e.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "s" || answer == "sim" || answer == "y"
}
