package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"medata/internal/domain"
)

// Accepted source-key spellings per canonical field, in priority order.
// The backend's naming drifts across revisions (casing and synonyms); the
// first present key wins, deterministically.
var (
	idKeys            = []string{"id", "Id", "ID", "registroId", "RegistroId", "registroID"}
	nameKeys          = []string{"nomePaciente", "pacienteNome", "NomePaciente", "PacienteNome"}
	cpfKeys           = []string{"cpfPaciente", "CpfPaciente", "cpf", "Cpf", "CPF"}
	dateKeys          = []string{"dataRegistro", "dataConsulta", "DataConsulta", "data"}
	transcriptionKeys = []string{"resumo", "transcricao", "Transcricao", "texto"}
	audioKeys         = []string{"audioPath", "AudioPath", "caminhoAudio", "CaminhoAudio", "audio", "Audio", "audioUrl", "AudioUrl"}
	latitudeKeys      = []string{"latitude", "Latitude"}
	longitudeKeys     = []string{"longitude", "Longitude"}
	addressKeys       = []string{"endereco", "Endereco", "localizacao", "Localizacao", "address", "Address"}
)

// Reconcile maps one loosely-shaped backend record onto the canonical
// shape. index feeds the generated fallback identifier for records the
// backend returns without any id.
func Reconcile(item map[string]any, index int) domain.CanonicalRecord {
	record := domain.CanonicalRecord{
		PatientName:   stringOr(item, nameKeys, domain.UnknownPatientName),
		PatientCPF:    stringOr(item, cpfKeys, ""),
		RecordedAt:    stringOr(item, dateKeys, time.Now().UTC().Format(time.RFC3339)),
		Transcription: stringOr(item, transcriptionKeys, ""),
		AudioPath:     stringOr(item, audioKeys, ""),
		Address:       stringOr(item, addressKeys, ""),
	}

	if lat, ok := floatField(item, latitudeKeys); ok {
		record.Latitude = &lat
	}
	if lon, ok := floatField(item, longitudeKeys); ok {
		record.Longitude = &lon
	}

	record.ID = stringOr(item, idKeys, "")
	if record.ID == "" {
		record.ID = fmt.Sprintf("%s-%s-%d", record.PatientName, record.RecordedAt, index)
	}
	return record
}

// FilterRecords keeps records whose patient name or CPF contains the
// query, case-insensitively. An empty query keeps everything.
func FilterRecords(records []domain.CanonicalRecord, query string) []domain.CanonicalRecord {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}
	filtered := make([]domain.CanonicalRecord, 0, len(records))
	for _, record := range records {
		name := strings.ToLower(record.PatientName)
		cpf := strings.ToLower(record.PatientCPF)
		if strings.Contains(name, query) || strings.Contains(cpf, query) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

func stringOr(item map[string]any, keys []string, fallback string) string {
	for _, key := range keys {
		value, ok := item[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case float64:
			return formatJSONNumber(v)
		}
	}
	return fallback
}

func floatField(item map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		value, ok := item[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v, true
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

// formatJSONNumber renders integral identifiers without a decimal point.
func formatJSONNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
