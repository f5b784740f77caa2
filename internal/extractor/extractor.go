// Package extractor implements the Document Extractor stage: it
// base64-decodes each raw attachment, hands the bytes to an OCR
// collaborator, and republishes the flattened field list. It is purely
// I/O-bound and never retries — a failure drops the message and logs.
package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/pedroporto/refi-pipeline/internal/bus"
	"github.com/pedroporto/refi-pipeline/internal/pipeline"
)

// OCR is the out-of-process structured-extraction collaborator. Its
// contract and accuracy are out of scope here; only the shape of its
// output matters to this stage.
type OCR interface {
	Extract(ctx context.Context, attachmentType pipeline.AttachmentType, data []byte) ([]pipeline.OCRField, error)
}

// Stage wires raw -> parsed.
type Stage struct {
	ocr       OCR
	publisher *bus.Publisher
	logger    *slog.Logger
}

// New builds a Stage.
func New(ocr OCR, publisher *bus.Publisher, logger *slog.Logger) *Stage {
	return &Stage{ocr: ocr, publisher: publisher, logger: logger}
}

// Handle implements bus.Handler for the raw topic.
func (s *Stage) Handle(ctx context.Context, sourceID int64, raw []byte) error {
	var env pipeline.RawEnvelope
	if !bus.DecodeOrOpaque(s.logger, raw, &env) {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(env.AttachmentData)
	if err != nil {
		s.logger.Error("extractor: invalid base64, dropping", "source_id", sourceID, "error", err)
		return nil
	}

	fields, err := s.ocr.Extract(ctx, env.AttachmentType, data)
	if err != nil {
		s.logger.Error("extractor: ocr failed, dropping", "source_id", sourceID, "error", err)
		return nil
	}

	out := pipeline.ParsedEnvelope{
		Header:           env.Header,
		AttachmentParsed: fields,
	}
	if err := s.publisher.Publish(ctx, sourceID, out); err != nil {
		return fmt.Errorf("extractor: publish parsed: %w", err)
	}
	return nil
}
