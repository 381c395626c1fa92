package model

import "github.com/rotisserie/eris"

// SourceID identifies the site a grant was scraped from.
type SourceID int

const (
	// SourcePHAC is the Public Health Agency of Canada funding listing.
	SourcePHAC SourceID = 1
	// SourceKindred is the Kindred Foundation "Kindred Cares Grant" page.
	SourceKindred SourceID = 2
	// SourceOTF is the Ontario Trillium Foundation Seed/Grow grant pages.
	SourceOTF SourceID = 3
)

// Source describes one origin site and its reserved grant_id range.
type Source struct {
	ID      SourceID
	Key     string // CLI and config key, e.g. "phac"
	Name    string
	Agency  string // funding_agency stamped on every record
	IDBase  int    // first grant_id handed out each run
	DataDir string // subdirectory of the data dir holding per-source files
}

var sources = []Source{
	{
		ID:      SourcePHAC,
		Key:     "phac",
		Name:    "Health Canada",
		Agency:  "Public Health Agency of Canada",
		IDBase:  1,
		DataDir: "hc_grant",
	},
	{
		ID:      SourceKindred,
		Key:     "kindred",
		Name:    "Kindred Cares",
		Agency:  "Kindred Foundation",
		IDBase:  1001,
		DataDir: "kc_grant",
	},
	{
		ID:      SourceOTF,
		Key:     "otf",
		Name:    "Ontario Trillium Foundation",
		Agency:  "Ontario Trillium Foundation",
		IDBase:  2001,
		DataDir: "otf_grant",
	},
}

// Sources returns every known source in id order.
func Sources() []Source {
	out := make([]Source, len(sources))
	copy(out, sources)
	return out
}

// LookupSource returns the descriptor for id.
func LookupSource(id SourceID) (Source, error) {
	for _, s := range sources {
		if s.ID == id {
			return s, nil
		}
	}
	return Source{}, eris.Errorf("model: unknown source id %d", id)
}

// LookupSourceKey returns the descriptor for a source key such as "otf".
func LookupSourceKey(key string) (Source, error) {
	for _, s := range sources {
		if s.Key == key {
			return s, nil
		}
	}
	return Source{}, eris.Errorf("model: unknown source %q", key)
}

// IDSequence hands out sequential grant ids starting at a source's base.
// A new sequence is created for every scrape; nothing is persisted.
type IDSequence struct {
	next int
}

// NewIDSequence starts a sequence at src.IDBase.
func NewIDSequence(src Source) *IDSequence {
	return &IDSequence{next: src.IDBase}
}

// Next returns the next id.
func (s *IDSequence) Next() int {
	id := s.next
	s.next++
	return id
}
