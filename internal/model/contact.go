// Package model defines the shared data types flowing through the
// extraction pipeline: contact records, extraction results, and runs.
package model

import (
	"strings"
	"time"
)

// ContactRecord is a single extracted contact. Fields beyond the first
// six are populated only by the deduplication merge.
type ContactRecord struct {
	Name         string  `json:"name,omitempty"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Organization string  `json:"organization,omitempty"`
	Position     string  `json:"position,omitempty"`
	City         string  `json:"city,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Source       string  `json:"source,omitempty"`

	OtherEmails     []string `json:"other_emails,omitempty"`
	OtherPhones     []string `json:"other_phones,omitempty"`
	MergedFromCount int      `json:"merged_from_count,omitempty"`
}

// IsEmpty reports whether the record carries no matchable identity at all
// (no name, no email, no phone). Such records pass through deduplication
// untouched.
func (c ContactRecord) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Email) == "" &&
		strings.TrimSpace(c.Phone) == ""
}

// ExtractionResult is the outcome of one extraction call.
type ExtractionResult struct {
	Success      bool            `json:"success"`
	Contacts     []ContactRecord `json:"contacts"`
	ProviderUsed string          `json:"provider_used,omitempty"`
	TextLength   int             `json:"text_length"`
	Chunks       int             `json:"chunks,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// EmailMetadata is the per-message context passed alongside the text.
// A nil metadata map switches the extractor into test mode.
type EmailMetadata map[string]string

// Run records one ingest invocation for persistence.
type Run struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	Source         string    `json:"source"`
	Emails         int       `json:"emails"`
	ContactsFound  int       `json:"contacts_found"`
	ContactsUnique int       `json:"contacts_unique"`
}
