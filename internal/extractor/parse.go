package extractor

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

// ErrMalformedResponse marks a provider response that was not the expected
// JSON shape. It counts as a provider failure, never as partial data.
var ErrMalformedResponse = eris.New("malformed provider response")

// ParseContacts extracts the contact list from a raw LLM completion.
// Models often wrap JSON in markdown fences or prose, so the outermost
// JSON object is located first. The top-level "contacts" key is required.
func ParseContacts(raw string) ([]model.ContactRecord, error) {
	body := extractJSONObject(raw)
	if body == "" || !gjson.Valid(body) {
		return nil, eris.Wrap(ErrMalformedResponse, "response is not valid JSON")
	}

	contacts := gjson.Get(body, "contacts")
	if !contacts.Exists() {
		return nil, eris.Wrap(ErrMalformedResponse, "missing required key \"contacts\"")
	}
	if !contacts.IsArray() {
		return nil, eris.Wrap(ErrMalformedResponse, "\"contacts\" is not an array")
	}

	var records []model.ContactRecord
	if err := json.Unmarshal([]byte(contacts.Raw), &records); err != nil {
		return nil, eris.Wrap(ErrMalformedResponse, err.Error())
	}

	for i := range records {
		if records[i].Confidence < 0 {
			records[i].Confidence = 0
		}
		if records[i].Confidence > 1 {
			records[i].Confidence = 1
		}
	}
	return records, nil
}

// extractJSONObject strips markdown code fences and surrounding prose,
// returning the outermost {...} of the text, or "" if none.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}
