package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// DecodeCandidate turns a raw model reply into a validated Candidate:
// extract the JSON object, normalize it, validate it against the candidate
// schema and, when that fails, retry once after SanitizeOptionalFields.
func DecodeCandidate(reply string, logger *slog.Logger) (Candidate, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}

	obj, err := ExtractJSONObject(reply)
	if err != nil {
		return Candidate{}, []byte(reply), fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	content, _, err := NormalizeAndSanitizeJSON([]byte(obj), logger)
	if err != nil {
		return Candidate{}, []byte(obj), fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if err := ValidateCandidateJSON(content); err != nil {
		cleaned, dropped, sErr := SanitizeOptionalFields(content)
		if sErr != nil {
			logger.Error("llm.extract.sanitize_failed", "error", sErr)
			return Candidate{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := ValidateCandidateJSON(cleaned); vErr != nil {
			logger.Error("llm.extract.schema_validation_failed", "error", vErr, "content", string(cleaned))
			return Candidate{}, cleaned, fmt.Errorf("%w: %v", ErrSchemaMismatch, vErr)
		}
		logger.Warn("llm.extract.lenient_sanitize_applied", "dropped", dropped)
		content = cleaned
	}

	var out Candidate
	if err := json.Unmarshal(content, &out); err != nil {
		return Candidate{}, content, fmt.Errorf("unmarshal candidate: %w", err)
	}
	return out, content, nil
}
