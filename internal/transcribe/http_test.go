package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consulta.m4a")
	if err := os.WriteFile(path, []byte("fake-aac"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestTranscribeExtractsTextoField(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file field missing: %v", err)
		} else {
			file.Close()
			if header.Header.Get("Content-Type") != "audio/mp4" {
				t.Errorf("unexpected part content type %q", header.Header.Get("Content-Type"))
			}
		}
		_, _ = w.Write([]byte(`{"texto":"relato do paciente"}`))
	}))
	defer server.Close()

	tr := New(server.URL, time.Second)
	text, err := tr.Transcribe(context.Background(), writeAudioFixture(t))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if text != "relato do paciente" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTranscribeAcceptsTextKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"patient report"}`))
	}))
	defer server.Close()

	tr := New(server.URL, time.Second)
	text, err := tr.Transcribe(context.Background(), writeAudioFixture(t))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if text != "patient report" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTranscribeSkipsEmptyKeyForPopulatedOne(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"texto":"","text":"relato do paciente"}`))
	}))
	defer server.Close()

	tr := New(server.URL, time.Second)
	text, err := tr.Transcribe(context.Background(), writeAudioFixture(t))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if text != "relato do paciente" {
		t.Fatalf("empty texto must fall through to text, got %q", text)
	}
}

func TestTranscribeEmptyTextIsNotAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"texto":""}`))
	}))
	defer server.Close()

	tr := New(server.URL, time.Second)
	text, err := tr.Transcribe(context.Background(), writeAudioFixture(t))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty text passthrough, got %q", text)
	}
}

func TestTranscribeTimeoutIsDistinct(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	tr := New(server.URL, 50*time.Millisecond)
	_, err := tr.Transcribe(context.Background(), writeAudioFixture(t))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTranscribeUnconfigured(t *testing.T) {
	t.Parallel()

	tr := New("", time.Second)
	if _, err := tr.Transcribe(context.Background(), "x.m4a"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	tr := New(server.URL, time.Second)
	if _, err := tr.Transcribe(context.Background(), writeAudioFixture(t)); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}
