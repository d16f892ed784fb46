package locator

import (
	"fmt"
	"os"
)

// ParseRecordsFile reads observation records from a JSON (or zlib-compressed
// JSON) file.
func ParseRecordsFile(path string) ([]RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return records, nil
}
