package scrub

import (
	"encoding/json"
	"log/slog"
)

const ScrubbedPlaceholder = "[SCRUBBED]"

// Scrubber blanks secret fields from JSON job payloads before they are
// persisted anywhere long-lived. Queue payloads carry plaintext mailbox
// passwords during their execution window; nothing beyond that window (dead
// letters, debug logs) may retain them.
type Scrubber struct {
	secretFields map[string]struct{}
	logger       *slog.Logger
}

// NewScrubber creates a Scrubber for the given set of secret field names.
func NewScrubber(fields []string, logger *slog.Logger) *Scrubber {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		fieldSet[field] = struct{}{}
	}
	return &Scrubber{
		secretFields: fieldSet,
		logger:       logger,
	}
}

// Payload returns a copy of the JSON payload with all configured secret
// fields replaced. A payload that cannot be parsed is returned unchanged with
// an error, so callers can decide whether to persist it at all.
func (s *Scrubber) Payload(payload []byte) ([]byte, error) {
	if len(s.secretFields) == 0 || len(payload) == 0 {
		return payload, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		s.logger.Warn("failed to unmarshal payload for scrubbing", "error", err)
		return payload, err
	}

	scrubbed := false
	for field := range s.secretFields {
		if v, ok := fields[field]; ok {
			if str, isString := v.(string); !isString || str != "" {
				fields[field] = ScrubbedPlaceholder
				scrubbed = true
			}
		}
	}

	if !scrubbed {
		return payload, nil
	}

	out, err := json.Marshal(fields)
	if err != nil {
		s.logger.Error("failed to marshal scrubbed payload", "error", err)
		return payload, err
	}
	return out, nil
}
