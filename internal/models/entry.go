// Package models defines the domain types for Chronicle.
package models

import "time"

// Entry is a single dated journal entry. Entries are immutable once parsed.
type Entry struct {
	Date        time.Time `json:"date"`
	Text        string    `json:"text"`
	JournalName string    `json:"journal_name,omitempty"`
	Location    string    `json:"location,omitempty"`
}

// TieredJournal is a journal partitioned by entry age.
//
// Tier1 holds recent entries in full, Tier2Batches holds weekly groups and
// Tier3Batches holds monthly groups. Every list is ascending by date and no
// batch is ever empty.
type TieredJournal struct {
	Tier1        []Entry   `json:"tier1"`
	Tier2Batches [][]Entry `json:"tier2_batches"`
	Tier3Batches [][]Entry `json:"tier3_batches"`
	Stats        TierStats `json:"stats"`
}

// TierStats counts entries and batches per tier.
type TierStats struct {
	TotalEntries int `json:"total_entries"`
	Tier1Entries int `json:"tier1_entries"`
	Tier2Entries int `json:"tier2_entries"`
	Tier3Entries int `json:"tier3_entries"`
	Tier2Batches int `json:"tier2_batches"`
	Tier3Batches int `json:"tier3_batches"`
}

// ObjectInfo is a lightweight listing item returned by the object store.
type ObjectInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Heading renders the entry's date plus journal and location, if any, as
// "[2006-01-02] (journal, location)".
func (e Entry) Heading() string {
	h := "[" + e.Date.UTC().Format("2006-01-02") + "]"
	switch {
	case e.JournalName != "" && e.Location != "":
		h += " (" + e.JournalName + ", " + e.Location + ")"
	case e.JournalName != "":
		h += " (" + e.JournalName + ")"
	case e.Location != "":
		h += " (" + e.Location + ")"
	}
	return h
}
