package export

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"

	"medata/internal/domain"
)

// RenderPDF produces the record export: title, patient identification,
// formatted date, optional address block and the transcription body.
func RenderPDF(record domain.CanonicalRecord) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, translate("Registro de Consulta — MedAta"))
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, translate(fmt.Sprintf("Paciente: %s", record.PatientName)))
	pdf.Ln(8)

	if record.PatientCPF != "" {
		pdf.Cell(0, 8, translate(fmt.Sprintf("CPF: %s", domain.FormatCPF(record.PatientCPF))))
		pdf.Ln(8)
	}

	pdf.Cell(0, 8, translate(fmt.Sprintf("Data: %s", formatRecordDate(record.RecordedAt))))
	pdf.Ln(8)

	if record.Address != "" {
		pdf.Cell(0, 8, translate(fmt.Sprintf("Local: %s", record.Address)))
		pdf.Ln(8)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, translate("Transcrição"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	body := record.Transcription
	if body == "" {
		body = domain.NoSpeechPlaceholder
	}
	pdf.MultiCell(0, 6, translate(body), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("falha ao gerar PDF: %w", err)
	}
	return &buf, nil
}

// WritePDF renders the record and writes it to path.
func WritePDF(record domain.CanonicalRecord, path string) error {
	buf, err := RenderPDF(record)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// formatRecordDate renders a backend timestamp as dd/mm/yyyy hh:mm,
// passing through values it cannot parse.
func formatRecordDate(value string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("02/01/2006 15:04")
		}
	}
	return value
}
