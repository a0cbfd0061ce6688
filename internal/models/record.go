package models

import (
	"encoding/json"
	"fmt"
)

// Record is a normalized team or event ready to be persisted
type Record interface {
	Kind() Kind
	// RecordID returns the source id as text, empty when the hit had none
	RecordID() string
}

// Normalize maps one raw hit source document into the normalized record for
// the given kind. Fields the target schema does not know are dropped and
// absent fields stay nil. Only a payload that is not a JSON object fails.
func Normalize(kind Kind, raw []byte) (Record, error) {
	switch kind {
	case KindTeam:
		var src TeamSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, fmt.Errorf("failed to decode team source: %w", err)
		}
		return src.ToTeam(), nil

	case KindEvent:
		var src EventSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, fmt.Errorf("failed to decode event source: %w", err)
		}
		return src.ToEvent(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// NormalizeAll maps a batch of raw hit sources. Hits that cannot be decoded
// are returned separately so the caller can log them without losing the rest.
func NormalizeAll(kind Kind, raws []json.RawMessage) ([]Record, []error) {
	records := make([]Record, 0, len(raws))
	var errs []error

	for i, raw := range raws {
		rec, err := Normalize(kind, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("hit %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}

	return records, errs
}
