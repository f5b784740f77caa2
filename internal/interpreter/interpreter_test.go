package interpreter

import (
	"testing"

	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

func strPtr(s string) *string { return &s }

func field(source pipeline.OCRFieldSource, label, value string, valueConf float64) pipeline.OCRField {
	return pipeline.OCRField{
		Source:    source,
		LabelText: strPtr(label),
		ValueText: strPtr(value),
		ValueConf: valueConf,
	}
}

func TestExtractBRLAmount(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    float64
		wantOK  bool
	}{
		{"pt-br grouped", "R$ 1.234,56 total", 1234.56, true},
		{"pt-br plain", "630,62", 630.62, true},
		{"us fallback", "1234.56", 1234.56, true},
		{"no amount", "sem valor aqui", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractBRLAmount(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("extractBRLAmount(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("extractBRLAmount(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestFindAmount(t *testing.T) {
	fields := []pipeline.OCRField{
		field(pipeline.OCRSourceSummary, "VALOR DO DOCUMENTO", "630,62", 90),
		field(pipeline.OCRSourceLineItem, "VENCIMENTO", "10/05/2026", 95),
	}

	got, ok := findAmount(fields)
	if !ok || got != 630.62 {
		t.Fatalf("findAmount() = %v, %v, want 630.62, true", got, ok)
	}
}

func TestFindAmountFallsBackToSweepWhenNoLabelScores(t *testing.T) {
	fields := []pipeline.OCRField{
		field(pipeline.OCRSourceLineItem, "OUTROS", "100,00", 50),
		field(pipeline.OCRSourceLineItem, "OUTROS2", "200,00", 80),
	}

	got, ok := findAmount(fields)
	if !ok || got != 200.00 {
		t.Fatalf("findAmount() = %v, %v, want 200.00, true (highest confidence)", got, ok)
	}
}

func TestFindInstallments(t *testing.T) {
	tests := []struct {
		name        string
		fields      []pipeline.OCRField
		wantCurrent int
		wantTotal   int
		wantNil     bool
	}{
		{
			name: "labeled plano wins over vencimento",
			fields: []pipeline.OCRField{
				field(pipeline.OCRSourceLineItem, "VENCIMENTO", "01/24", 99),
				field(pipeline.OCRSourceLineItem, "PLANO", "12/60", 80),
			},
			wantCurrent: 12,
			wantTotal:   60,
		},
		{
			name: "invalid pair out of range is skipped",
			fields: []pipeline.OCRField{
				field(pipeline.OCRSourceLineItem, "PLANO", "300/400", 90),
			},
			wantNil: true,
		},
		{
			name: "unlabeled fallback by confidence",
			fields: []pipeline.OCRField{
				field(pipeline.OCRSourceLineItem, "", "3/36", 40),
				field(pipeline.OCRSourceLineItem, "", "5/60", 85),
			},
			wantCurrent: 5,
			wantTotal:   60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, total := findInstallments(tt.fields)
			if tt.wantNil {
				if current != nil || total != nil {
					t.Fatalf("findInstallments() = %v/%v, want nil/nil", current, total)
				}
				return
			}
			if current == nil || total == nil || *current != tt.wantCurrent || *total != tt.wantTotal {
				t.Fatalf("findInstallments() = %v/%v, want %d/%d", current, total, tt.wantCurrent, tt.wantTotal)
			}
		})
	}
}

func TestFindCompany(t *testing.T) {
	fields := []pipeline.OCRField{
		field(pipeline.OCRSourceSummary, "EMPRESA", "Banco Votorantim S.A.", 70),
		field(pipeline.OCRSourceSummary, "OUTRO", "Loja Qualquer Ltda", 99),
	}

	got, ok := findCompany(fields)
	if !ok || got != "Banco Votorantim S.A." {
		t.Fatalf("findCompany() = %q, %v, want %q, true", got, ok, "Banco Votorantim S.A.")
	}
}
