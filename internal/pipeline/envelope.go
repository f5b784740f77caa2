// Package pipeline defines the wire schemas shared by every bus topic in
// the refinancing pipeline: raw, parsed, interpreted, verified, enriched,
// matched and composed. Every envelope carries a stable source_id, a
// millisecond publish timestamp, and a stage-specific payload.
package pipeline

// Header fields shared by every envelope on the bus.
type Header struct {
	SourceID  int64 `json:"source_id"`
	Timestamp int64 `json:"timestamp"`
}

// AttachmentType enumerates the kinds of documents accepted on the raw topic.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
)

// RawEnvelope is published by the Ingress FSM for every photo/document the
// user sends. AttachmentData is base64-encoded file bytes.
type RawEnvelope struct {
	Header
	AttachmentType AttachmentType `json:"attachment_type"`
	AttachmentData string         `json:"attachment_data"`
}

// OCRFieldSource distinguishes a document summary field from a line-item field.
type OCRFieldSource string

const (
	OCRSourceSummary   OCRFieldSource = "summary"
	OCRSourceLineItem  OCRFieldSource = "line_item"
)

// OCRField is a single label/value pair extracted by the OCR collaborator,
// along with the collaborator's confidence in each half.
type OCRField struct {
	Source     OCRFieldSource `json:"source"`
	LabelText  *string        `json:"label_text"`
	LabelConf  float64        `json:"label_conf"`
	ValueText  *string        `json:"value_text"`
	ValueConf  float64        `json:"value_conf"`
}

// ParsedEnvelope is published by the Document Extractor.
type ParsedEnvelope struct {
	Header
	AttachmentParsed []OCRField `json:"attachment_parsed"`
}

// AgentAnalysis is the Interpreter's normalized loan descriptor. Any field
// that could not be resolved is left nil.
type AgentAnalysis struct {
	Company                   *string  `json:"company"`
	InstallmentCount          *int     `json:"installment_count"`
	CurrentInstallmentNumber  *int     `json:"current_installment_number"`
	InstallmentAmount         *float64 `json:"installment_amount"`
}

// InterpretedEnvelope is published by the Interpreter.
type InterpretedEnvelope struct {
	Header
	AgentAnalysis AgentAnalysis `json:"agent_analysis"`
}

// FinancingType enumerates the two financing products the system handles.
type FinancingType string

const (
	FinancingAutomobile FinancingType = "automobile"
	FinancingProperty   FinancingType = "property"
)

// FinancingInfo is collected from the user via the conversational flow and
// attached to the verified envelope.
type FinancingInfo struct {
	Type  FinancingType `json:"type"`
	Value float64       `json:"value"`
}

// VerifiedEnvelope is published by the Verifier (via the Ingress FSM
// injecting it once the conversational collection completes).
type VerifiedEnvelope struct {
	Header
	AgentAnalysis AgentAnalysis `json:"agent_analysis"`
	FinancingInfo FinancingInfo `json:"financing_info"`
}

// Account mirrors the accounts table; zero-filled when the row is missing.
type Account struct {
	Balance      float64 `json:"balance"`
	CreditLimit  float64 `json:"credit_limit"`
	CreditUsage  float64 `json:"credit_usage"`
}

// Transaction is one row from the user's transaction history.
type Transaction struct {
	ID              int64   `json:"id"`
	Amount          float64 `json:"amount"`
	TransactionType string  `json:"transaction_type"`
	CreatedAt       int64   `json:"created_at"`
}

// Investment is one row from the user's investment history.
type Investment struct {
	ID     int64   `json:"id"`
	Kind   string  `json:"kind"`
	Amount float64 `json:"amount"`
}

// UserData is the profile/account/history join the Enricher attaches.
type UserData struct {
	UserMetadata map[string]any `json:"user_metadata"`
	Account      Account        `json:"account"`
	Transactions []Transaction  `json:"transactions"`
	Investments  []Investment   `json:"investments"`
}

// EnrichedEnvelope is published by the Enricher.
type EnrichedEnvelope struct {
	Header
	AgentAnalysis AgentAnalysis `json:"agent_analysis"`
	FinancingInfo FinancingInfo `json:"financing_info"`
	UserData      UserData      `json:"user_data"`
}

// EligibleOffer is the Matcher's computed offer, monthly rates in percent.
type EligibleOffer struct {
	RemainingFinanceAmount float64 `json:"remaining_finance_amount"`
	CurrentFinanceMonthTax float64 `json:"current_finance_month_tax"`
	NewFinanceMonthTax     float64 `json:"new_finance_month_tax"`
	NewFinancingAmount     float64 `json:"new_financing_amount"`
	PotentialSavings       float64 `json:"potential_savings"`
}

// MatchedEnvelope is published by the Matcher.
type MatchedEnvelope struct {
	Header
	AgentAnalysis  AgentAnalysis  `json:"agent_analysis"`
	FinancingInfo  FinancingInfo  `json:"financing_info"`
	OfferAvailable bool           `json:"offer_available"`
	EligibleOffer  *EligibleOffer `json:"eligible_offer,omitempty"`
}

// ComposedEnvelope is published by the Composer and consumed by the Notifier.
type ComposedEnvelope struct {
	SourceID     int64  `json:"source_id"`
	OfferMessage string `json:"offer_message"`
	Timestamp    int64  `json:"timestamp"`
}
