package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

// HTTPOCR calls an out-of-process OCR/structured-extraction service over
// HTTP. The service itself is an external collaborator whose internals are
// out of scope; this is just the thin client for its documented contract.
type HTTPOCR struct {
	baseURL string
	http    *http.Client
}

// NewHTTPOCR builds an HTTPOCR client against baseURL.
func NewHTTPOCR(baseURL string) *HTTPOCR {
	return &HTTPOCR{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPOCR) Extract(ctx context.Context, attachmentType pipeline.AttachmentType, data []byte) ([]pipeline.OCRField, error) {
	body, err := json.Marshal(map[string]any{
		"attachment_type": attachmentType,
		"attachment_data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("httpocr: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httpocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpocr: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("httpocr: status %d", resp.StatusCode)
	}

	var decoded struct {
		Fields []pipeline.OCRField `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("httpocr: decode response: %w", err)
	}
	return decoded.Fields, nil
}
