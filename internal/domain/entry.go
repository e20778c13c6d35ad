package domain

import (
	"strings"
	"time"
)

// Entry is one journal record. The JSON shape is shared by the document
// store and the JSON file, so field names must not change.
type Entry struct {
	// ID is assigned once at creation and never rewritten.
	ID string `json:"id"`

	Title   string `json:"title"`
	Content string `json:"content"`
	Author  string `json:"author"`

	// Date and Time are display strings derived from Timestamp in the
	// configured zone at write time.
	Date string `json:"date"`
	Time string `json:"time"`

	// Timestamp is epoch seconds (fractional) and the sort key.
	Timestamp float64 `json:"timestamp"`
}

// EntryInput is the user-editable part of an Entry.
type EntryInput struct {
	Title   string
	Content string
	Author  string
}

// Normalize returns a copy with surrounding whitespace trimmed.
func (in EntryInput) Normalize() EntryInput {
	return EntryInput{
		Title:   strings.TrimSpace(in.Title),
		Content: strings.TrimSpace(in.Content),
		Author:  strings.TrimSpace(in.Author),
	}
}

// Validate reports the first required field that is empty after trimming.
func (in EntryInput) Validate() error {
	n := in.Normalize()
	switch {
	case n.Title == "":
		return Invalid("title", "please fill in all required fields")
	case n.Content == "":
		return Invalid("content", "please fill in all required fields")
	case n.Author == "":
		return Invalid("author", "please fill in all required fields")
	}
	return nil
}

// Stamp sets Date, Time and Timestamp from now.
func (e *Entry) Stamp(now time.Time, dateLayout, timeLayout string) {
	e.Date = now.Format(dateLayout)
	e.Time = now.Format(timeLayout)
	e.Timestamp = float64(now.UnixNano()) / float64(time.Second)
}

// Apply overwrites the editable fields.
func (e *Entry) Apply(in EntryInput) {
	n := in.Normalize()
	e.Title = n.Title
	e.Content = n.Content
	e.Author = n.Author
}

// SortKey selects the ordering of a journal listing.
type SortKey string

const (
	SortByTimestamp SortKey = "timestamp"
	SortByTitle     SortKey = "title"
)
