package locator

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
)

// maxInflatedBytes caps decompressed payloads.
const maxInflatedBytes = 16 << 20

// recordEnvelope is the batch wrapper accepted alongside bare records and arrays.
type recordEnvelope struct {
	Observations []RawRecord `json:"observations"`
}

// DecodeRecords decodes observation records from various formats:
// - a single JSON object
// - a JSON array of objects
// - an envelope {"observations": [...]}
// - zlib-compressed JSON of any of the above
func DecodeRecords(data []byte) ([]RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	jsonBytes := data
	if data[0] != '{' && data[0] != '[' {
		inflated, err := inflateZlib(data)
		if err != nil {
			return nil, fmt.Errorf("unknown format: not JSON or zlib-compressed")
		}
		jsonBytes = bytes.TrimSpace(inflated)
	}

	if len(jsonBytes) == 0 {
		return nil, fmt.Errorf("decoded JSON payload is empty")
	}

	return ParseRecordsJSON(jsonBytes)
}

// ParseRecordsJSON parses a JSON object, array or envelope of records.
func ParseRecordsJSON(data []byte) ([]RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("parsing JSON: empty input")
	}

	switch data[0] {
	case '[':
		var records []RawRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parsing JSON array: %w", err)
		}
		return records, nil
	case '{':
		var record RawRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		if _, ok := record["observations"]; ok {
			var env recordEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				return nil, fmt.Errorf("parsing observations envelope: %w", err)
			}
			return env.Observations, nil
		}
		return []RawRecord{record}, nil
	default:
		return nil, fmt.Errorf("parsing JSON: expected object or array, got %q", data[0])
	}
}

// inflateZlib decompresses zlib-compressed data
func inflateZlib(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	decompressed, err := io.ReadAll(io.LimitReader(reader, maxInflatedBytes))
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}

	return decompressed, nil
}
