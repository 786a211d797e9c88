package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"medata/internal/domain"
)

const testDoctorID = "3f1f8a2e-9f1c-4a7d-8b1e-2c3d4e5f6a7b"

func TestLoginFindsDoctorIDAnywhereInTree(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/medico/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dados":{"medico":{"identificador":"` + testDoctorID + `"}},"token":"abc"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	id, err := client.Login(context.Background(), "a@b.c", "s")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if id != testDoctorID {
		t.Fatalf("unexpected doctor id: %q", id)
	}
}

func TestLoginPrefersIdentifierKeys(t *testing.T) {
	t.Parallel()

	other := "00000000-0000-4000-8000-000000000000"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sessionId":"` + other + `","medicoId":"` + testDoctorID + `"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	id, err := client.Login(context.Background(), "a@b.c", "s")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if id != testDoctorID {
		t.Fatalf("expected medicoId preferred, got %q", id)
	}
}

func TestLoginScanDeterministicWithoutIdentifierKeys(t *testing.T) {
	t.Parallel()

	other := "00000000-0000-4000-8000-000000000000"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"zeta":{"valor":"` + other + `"},"alfa":{"valor":"` + testDoctorID + `"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	// Map iteration order varies per run; the scan must not.
	for i := 0; i < 50; i++ {
		id, err := client.Login(context.Background(), "a@b.c", "s")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if id != testDoctorID {
			t.Fatalf("iteration %d picked %q, want the first key in sorted order", i, id)
		}
	}
}

func TestLoginUnauthorized(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Login(context.Background(), "a@b.c", "bad"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginWithoutUUIDInResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"medicoId":"1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Login(context.Background(), "a@b.c", "s"); !errors.Is(err, ErrNoDoctorID) {
		t.Fatalf("expected ErrNoDoctorID, got %v", err)
	}
}

func TestSubmitRejectsNonCanonicalDoctorID(t *testing.T) {
	t.Parallel()

	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	for _, id := range []string{"1", "not-a-guid", "3f1f8a2e9f1c4a7d8b1e2c3d4e5f6a7b", ""} {
		_, err := client.Submit(context.Background(), id, domain.DraftRecord{}, nil)
		if !errors.Is(err, ErrInvalidDoctorID) {
			t.Fatalf("id %q: expected ErrInvalidDoctorID, got %v", id, err)
		}
	}
	if called {
		t.Fatalf("invalid doctor id must never issue a network call")
	}
}

func TestSubmitBuildsMultipartPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/registro/gravar" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("expected multipart request, got %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("MedicoId"); got != testDoctorID {
			t.Errorf("MedicoId = %q", got)
		}
		if got := r.FormValue("NomePaciente"); got != "Maria Silva" {
			t.Errorf("NomePaciente = %q", got)
		}
		if got := r.FormValue("CPF"); got != "12345678901" {
			t.Errorf("CPF = %q, want digits only", got)
		}
		if got := r.FormValue("Transcricao"); got != "relato do paciente" {
			t.Errorf("Transcricao = %q", got)
		}
		if got := r.FormValue("Latitude"); got != "-23.55" {
			t.Errorf("Latitude = %q", got)
		}
		if got := r.FormValue("Localizacao"); got != "Av. Paulista, São Paulo" {
			t.Errorf("Localizacao = %q", got)
		}
		file, header, err := r.FormFile("AudioArquivo")
		if err != nil {
			t.Errorf("AudioArquivo missing: %v", err)
		} else {
			defer file.Close()
			if header.Filename != "consulta.m4a" {
				t.Errorf("filename = %q", header.Filename)
			}
			if ct := header.Header.Get("Content-Type"); ct != "audio/mp4" {
				t.Errorf("audio content type = %q", ct)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Id":"42","NomePaciente":"Maria Silva","Transcricao":"relato do paciente"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	draft := domain.DraftRecord{
		PatientName:       "Maria Silva",
		PatientCPF:        "123.456.789-01",
		TranscriptionText: "relato do paciente",
		Geolocation:       &domain.Geolocation{Latitude: -23.55, Longitude: -46.63, Address: "Av. Paulista, São Paulo"},
	}
	audio := &AudioFile{Name: "consulta.m4a", Content: strings.NewReader("fake-aac")}

	record, err := client.Submit(context.Background(), testDoctorID, draft, audio)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if record.ID != "42" || record.PatientName != "Maria Silva" {
		t.Fatalf("unexpected reconciled response: %+v", record)
	}
}

func TestSubmitDefaultsAnonymousPatient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("NomePaciente"); got != domain.AnonymousPatientName {
			t.Errorf("NomePaciente = %q, want anonymous placeholder", got)
		}
		if _, ok := r.MultipartForm.Value["CPF"]; ok {
			t.Errorf("empty CPF must be omitted")
		}
		if got, ok := r.MultipartForm.Value["Transcricao"]; !ok || got[0] != "" {
			t.Errorf("Transcricao must always be present, got %v", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Submit(context.Background(), testDoctorID, domain.DraftRecord{}, nil); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
}

func TestHistoryReconcilesAndFilters(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/registro/historico/"+testDoctorID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"Id":"a1","NomePaciente":"Maria Silva","Transcricao":"dor de cabeça"},
			{"id":"a2","pacienteNome":"João Souza","cpf":"98765432100"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	records, err := client.History(context.Background(), testDoctorID, "maria")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(records) != 1 || records[0].PatientName != "Maria Silva" {
		t.Fatalf("unexpected filter result: %+v", records)
	}
}

func TestHistoryRejectsInvalidDoctorID(t *testing.T) {
	t.Parallel()

	client := NewClient("http://unused", time.Second)
	if _, err := client.History(context.Background(), "1", ""); !errors.Is(err, ErrInvalidDoctorID) {
		t.Fatalf("expected ErrInvalidDoctorID, got %v", err)
	}
}

func TestServerErrorCycleMessageClarified(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`System.Text.Json.JsonException: A possible object cycle was detected`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.History(context.Background(), testDoctorID, "")
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected *ServerError, got %v", err)
	}
	if serverErr.Message != domain.CircularReferenceErrorMessage {
		t.Fatalf("expected clarified cycle message, got %q", serverErr.Message)
	}
	if !strings.Contains(serverErr.Body, "object cycle") {
		t.Fatalf("raw body must be preserved on the error value")
	}
}

func TestUnreachableServerDistinctError(t *testing.T) {
	t.Parallel()

	// A closed server yields a transport error, not a status.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.History(context.Background(), testDoctorID, "")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestDeleteSuccessIff2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/registro/excluir/a1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if err := client.Delete(context.Background(), "a1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestAudioContentType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		given string
		want  string
	}{
		{"a.m4a", "", "audio/mp4"},
		{"a.MP4", "", "audio/mp4"},
		{"a.opus", "", "audio/ogg"},
		{"a.wav", "audio/wav", "audio/wav"},
		{"a.bin", "", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := AudioContentType(tc.name, tc.given); got != tc.want {
			t.Fatalf("AudioContentType(%q, %q) = %q, want %q", tc.name, tc.given, got, tc.want)
		}
	}
}

func TestValidDoctorID(t *testing.T) {
	t.Parallel()

	if !ValidDoctorID(testDoctorID) {
		t.Fatalf("canonical uuid rejected")
	}
	for _, id := range []string{"1", "not-a-guid", "{3f1f8a2e-9f1c-4a7d-8b1e-2c3d4e5f6a7b}", "3f1f8a2e9f1c4a7d8b1e2c3d4e5f6a7b"} {
		if ValidDoctorID(id) {
			t.Fatalf("%q accepted as doctor id", id)
		}
	}
}
