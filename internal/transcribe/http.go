package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"medata/internal/api"
)

var (
	// ErrNotConfigured is returned when no transcription URL is set.
	ErrNotConfigured = errors.New("serviço de transcrição não configurado")
	// ErrTimeout is returned when the hard cutoff cancels the request.
	ErrTimeout = errors.New("tempo limite da transcrição excedido")
)

// HTTPTranscriber submits a recorded file to the remote speech-to-text
// service as a single multipart POST. No retry is performed.
type HTTPTranscriber struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

// New builds a transcriber for the given endpoint. timeout is the hard
// cutoff; the in-flight request is cancelled when it elapses.
func New(url string, timeout time.Duration) *HTTPTranscriber {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPTranscriber{
		url:     url,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// Transcribe uploads the audio file under the form field "file" and
// extracts the text from the first populated accepted response key.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if t.url == "" {
		return "", ErrNotConfigured
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("falha ao abrir áudio: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(audioPath)))
	header.Set("Content-Type", api.AudioContentType(audioPath, ""))
	part, err := form.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("falha ao ler áudio: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("falha ao contatar serviço de transcrição: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("falha ao ler resposta da transcrição: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("serviço de transcrição respondeu %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("resposta de transcrição inválida: %w", err)
	}
	// The service has answered under either key across revisions. An
	// empty value falls through so the other key still wins.
	for _, key := range []string{"texto", "text"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return value, nil
		}
	}
	return "", nil
}
