package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"medata/internal/domain"
)

var (
	// ErrInvalidDoctorID is returned before any network call when the
	// session identifier is not a canonical UUID.
	ErrInvalidDoctorID = errors.New("identificador do médico inválido")
	// ErrInvalidCredentials is returned on a 401 login response.
	ErrInvalidCredentials = errors.New("e-mail ou senha incorretos")
	// ErrUnreachable is returned when the backend produced no response.
	ErrUnreachable = errors.New("não foi possível contatar o servidor")
	// ErrNoDoctorID is returned when a login response carries no UUID.
	ErrNoDoctorID = errors.New("resposta de login sem identificador do médico")
)

// ServerError is a non-2xx backend response. Message carries the
// user-facing text; Body keeps the raw payload for diagnosis.
type ServerError struct {
	Status  int
	Body    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("erro no servidor (%d): %s", e.Status, e.Message)
}

var cyclePattern = regexp.MustCompile(`(?i)cycle`)

func newServerError(status int, body []byte) *ServerError {
	raw := strings.TrimSpace(string(body))
	message := raw
	// A known backend serialization bug produces a circular-reference
	// stack trace; surface a clarified message instead of the raw dump.
	if status == http.StatusInternalServerError && cyclePattern.MatchString(raw) {
		message = domain.CircularReferenceErrorMessage
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &ServerError{Status: status, Body: raw, Message: message}
}

// doctorIDPattern is the canonical grouped UUID form. uuid.Validate alone
// also accepts ungrouped and braced variants, which the backend rejects.
var doctorIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidDoctorID reports whether id is a canonical 8-4-4-4-12 UUID.
func ValidDoctorID(id string) bool {
	return doctorIDPattern.MatchString(id) && uuid.Validate(id) == nil
}

// Client talks to the MedAta backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a backend client. timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Login authenticates the doctor and returns the doctor identifier, which
// the backend may place anywhere in the response tree.
func (c *Client) Login(ctx context.Context, email, senha string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "senha": senha})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/medico/login", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		var serverErr *ServerError
		if errors.As(err, &serverErr) && serverErr.Status == http.StatusUnauthorized {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		return "", fmt.Errorf("resposta de login inválida: %w", err)
	}
	id, ok := findDoctorID(tree)
	if !ok {
		return "", ErrNoDoctorID
	}
	return id, nil
}

// RegisterRequest is the doctor sign-up payload.
type RegisterRequest struct {
	Nome           string `json:"Nome"`
	Sobrenome      string `json:"Sobrenome"`
	DataNascimento string `json:"DataNascimento"`
	Crm            string `json:"Crm"`
	Email          string `json:"Email"`
	Senha          string `json:"Senha"`
	Registros      []any  `json:"Registros"`
}

// Register creates a doctor account.
func (c *Client) Register(ctx context.Context, reg RegisterRequest) error {
	if reg.Registros == nil {
		reg.Registros = []any{}
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/medico/cadastrar", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

// History fetches the doctor's records and reconciles each heterogeneous
// payload into the canonical shape. A filter matches case-insensitively
// against patient name or CPF, after normalization.
func (c *Client) History(ctx context.Context, doctorID, filter string) ([]domain.CanonicalRecord, error) {
	if !ValidDoctorID(doctorID) {
		return nil, ErrInvalidDoctorID
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/registro/historico/"+url.PathEscape(doctorID), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("resposta de histórico inválida: %w", err)
	}

	records := make([]domain.CanonicalRecord, 0, len(items))
	for idx, item := range items {
		records = append(records, Reconcile(item, idx))
	}
	log.Printf("[historico] %d registros recebidos", len(records))
	return FilterRecords(records, filter), nil
}

// Delete removes a record. Success iff the backend answers 2xx.
func (c *Client) Delete(ctx context.Context, recordID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/registro/excluir/"+url.PathEscape(recordID), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// AudioFile is the optional capture attached to a submission.
type AudioFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Submit uploads the draft as one multipart request. The doctor identifier
// is validated locally first so no partial submission ever leaves the
// device with a malformed id.
func (c *Client) Submit(ctx context.Context, doctorID string, draft domain.DraftRecord, audio *AudioFile) (domain.CanonicalRecord, error) {
	if !ValidDoctorID(doctorID) {
		return domain.CanonicalRecord{}, ErrInvalidDoctorID
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	name := strings.TrimSpace(draft.PatientName)
	if name == "" {
		name = domain.AnonymousPatientName
	}
	fields := map[string]string{
		"MedicoId":     doctorID,
		"NomePaciente": name,
		"Transcricao":  draft.TranscriptionText,
	}
	if cpf := domain.CPFDigits(draft.PatientCPF); cpf != "" {
		fields["CPF"] = cpf
	}
	if geo := draft.Geolocation; geo != nil {
		fields["Latitude"] = strconv.FormatFloat(geo.Latitude, 'f', -1, 64)
		fields["Longitude"] = strconv.FormatFloat(geo.Longitude, 'f', -1, 64)
		if geo.Address != "" {
			fields["Localizacao"] = geo.Address
		}
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return domain.CanonicalRecord{}, err
		}
	}

	if audio != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="AudioArquivo"; filename=%q`, audio.Name))
		header.Set("Content-Type", AudioContentType(audio.Name, audio.ContentType))
		part, err := form.CreatePart(header)
		if err != nil {
			return domain.CanonicalRecord{}, err
		}
		if _, err := io.Copy(part, audio.Content); err != nil {
			return domain.CanonicalRecord{}, fmt.Errorf("falha ao anexar áudio: %w", err)
		}
	}

	if err := form.Close(); err != nil {
		return domain.CanonicalRecord{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/registro/gravar", &buf)
	if err != nil {
		return domain.CanonicalRecord{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return domain.CanonicalRecord{}, err
	}

	var item map[string]any
	if len(body) > 0 && json.Unmarshal(body, &item) == nil {
		return Reconcile(item, 0), nil
	}
	return domain.CanonicalRecord{PatientName: name}, nil
}

// AudioContentType maps a filename extension to the container type the
// backend expects. Unknown extensions keep the caller-provided type.
func AudioContentType(name, given string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".opus":
		return "audio/ogg"
	default:
		if given != "" {
			return given
		}
		return "application/octet-stream"
	}
}

// do executes the request once (no retries) and returns the body for 2xx
// responses. Non-2xx becomes *ServerError; no response at all becomes a
// distinct unreachable (or timeout) error.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("tempo limite excedido: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serverErr := newServerError(resp.StatusCode, body)
		log.Printf("[api] %s %s -> %d: %s", req.Method, req.URL.Path, resp.StatusCode, truncate(serverErr.Body, 300))
		return nil, serverErr
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// findDoctorID locates a canonical UUID anywhere in a decoded JSON tree.
// Identifier-like keys are preferred; otherwise the first match in
// depth-first order wins.
func findDoctorID(tree any) (string, bool) {
	if obj, ok := tree.(map[string]any); ok {
		for _, key := range []string{"medicoId", "MedicoId", "medicoID", "id", "Id", "ID"} {
			if value, ok := obj[key].(string); ok && ValidDoctorID(value) {
				return value, true
			}
		}
	}
	return scanForUUID(tree)
}

func scanForUUID(tree any) (string, bool) {
	switch node := tree.(type) {
	case string:
		if ValidDoctorID(node) {
			return node, true
		}
	case map[string]any:
		// Sorted keys keep the pick stable across map iteration orders.
		keys := make([]string, 0, len(node))
		for key := range node {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if id, ok := scanForUUID(node[key]); ok {
				return id, true
			}
		}
	case []any:
		for _, value := range node {
			if id, ok := scanForUUID(value); ok {
				return id, true
			}
		}
	}
	return "", false
}
