// Package model defines the grant record and source descriptors shared by
// the extractors and sinks.
package model

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

const (
	// TimestampLayout formats crawled_date and last_updated.
	TimestampLayout = "2006-01-02 15:04:05"
	// DateLayout formats deadline.
	DateLayout = "2006-01-02"
)

// Fields that may be flagged as low confidence.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldEligibility = "eligibility_criteria"
)

// Grant is one normalized funding opportunity.
type Grant struct {
	GrantID             int      `json:"grant_id" csv:"grant_id"`
	SourceID            SourceID `json:"source_id" csv:"source_id"`
	CrawledDate         string   `json:"crawled_date" csv:"crawled_date"`
	Title               string   `json:"title" csv:"title"`
	Description         string   `json:"description" csv:"description"`
	FundingAgency       string   `json:"funding_agency" csv:"funding_agency"`
	Amount              *float64 `json:"amount" csv:"amount"`
	Deadline            *string  `json:"deadline" csv:"deadline"`
	EligibilityCriteria string   `json:"eligibility_criteria" csv:"eligibility_criteria"`
	ApplicationURL      string   `json:"application_url" csv:"application_url"`
	LastUpdated         string   `json:"last_updated" csv:"last_updated"`
	IsActive            bool     `json:"is_active" csv:"is_active"`
	Assignee            string   `json:"assignee" csv:"assignee"`

	// LowConfidence lists fields filled from hardcoded fallbacks rather than the page.
	LowConfidence Flags `json:"low_confidence,omitempty" csv:"low_confidence"`
}

// NewGrant returns a record with bookkeeping fields populated for src.
func NewGrant(src Source, id int, url string, now time.Time) Grant {
	ts := now.Format(TimestampLayout)
	return Grant{
		GrantID:        id,
		SourceID:       src.ID,
		CrawledDate:    ts,
		FundingAgency:  src.Agency,
		ApplicationURL: url,
		LastUpdated:    ts,
	}
}

// SetAmount stores v as the funding amount.
func (g *Grant) SetAmount(v float64) {
	g.Amount = &v
}

// SetDeadline stores an ISO date, ignoring empty input.
func (g *Grant) SetDeadline(iso string) {
	if iso == "" {
		return
	}
	g.Deadline = &iso
}

// Flag marks field as low confidence.
func (g *Grant) Flag(field string) {
	if !slices.Contains(g.LowConfidence, field) {
		g.LowConfidence = append(g.LowConfidence, field)
	}
}

// Flags is a set of field names. It is a JSON array and a
// semicolon-joined CSV cell.
type Flags []string

// MarshalText implements encoding.TextMarshaler for CSV.
func (f Flags) MarshalText() ([]byte, error) {
	return []byte(strings.Join(f, ";")), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for CSV.
func (f *Flags) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*f = nil
		return nil
	}
	*f = strings.Split(s, ";")
	return nil
}

// MarshalJSON keeps Flags an array in JSON despite MarshalText.
func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(f))
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flags) UnmarshalJSON(b []byte) error {
	var s []string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = s
	return nil
}
