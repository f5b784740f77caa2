package verifier

import (
	"testing"

	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

func strPtr(s string) *string   { return &s }
func intPtr(n int) *int         { return &n }
func f64Ptr(v float64) *float64 { return &v }

func TestSchemaComplete(t *testing.T) {
	complete := pipeline.AgentAnalysis{
		Company:                  strPtr("Itaú"),
		InstallmentCount:         intPtr(60),
		CurrentInstallmentNumber: intPtr(5),
		InstallmentAmount:        f64Ptr(1200),
	}
	if !schemaComplete(complete) {
		t.Error("expected schemaComplete to be true for a fully populated analysis")
	}

	missingAmount := complete
	missingAmount.InstallmentAmount = nil
	if schemaComplete(missingAmount) {
		t.Error("expected schemaComplete to be false when installment_amount is nil")
	}

	missingCompany := complete
	missingCompany.Company = nil
	if schemaComplete(missingCompany) {
		t.Error("expected schemaComplete to be false when company is nil")
	}
}
