package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
}

// parseReceiptJSON extracts the first JSON object of a model answer
func parseReceiptJSON(text string) (*ReceiptData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data ReceiptData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// An unreadable date stays empty so the form keeps whatever the user typed
	data.Date = normalizeDate(data.Date)
	data.Name = strings.TrimSpace(data.Name)
	data.Category = strings.TrimSpace(data.Category)
	if data.Amount < 0 {
		data.Amount = 0
	}
	if data.VAT < 0 {
		data.VAT = 0
	}

	return &data, nil
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, format := range dateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}
