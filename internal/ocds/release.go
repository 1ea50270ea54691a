package ocds

import (
	"encoding/json"
	"strings"
	"time"
)

// Release is the subset of an OCDS release the pipeline interprets. The full
// upstream payload is kept verbatim in Raw so nothing is lost on storage.
type Release struct {
	OCID   string        `json:"ocid"`
	Date   string        `json:"date"`
	Tender ReleaseTender `json:"tender"`
	Buyer  Party         `json:"buyer"`

	// Raw is the untouched release object as received from the API.
	Raw json.RawMessage `json:"-"`
}

type ReleaseTender struct {
	ID                      string          `json:"id"`
	Title                   string          `json:"title"`
	Description             string          `json:"description"`
	MainProcurementCategory string          `json:"mainProcurementCategory"`
	TenderPeriod            Period          `json:"tenderPeriod"`
	ProcuringEntity         Identifier      `json:"procuringEntity"`
	SubmissionMethod        []string        `json:"submissionMethod"`
	SubmissionMethodDetails string          `json:"submissionMethodDetails"`
	RequiredFormat          string          `json:"requiredFormat"`
	FileSizeLimit           string          `json:"fileSizeLimit"`
	Documents               []Document      `json:"documents"`
	Items                   json.RawMessage `json:"items"`
}

type Period struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type Identifier struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Party struct {
	Name         string       `json:"name"`
	Address      Address      `json:"address"`
	ContactPoint ContactPoint `json:"contactPoint"`
}

type Address struct {
	StreetAddress string `json:"streetAddress"`
	Locality      string `json:"locality"`
	Region        string `json:"region"`
	PostalCode    string `json:"postalCode"`
}

type ContactPoint struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`
	FaxNumber string `json:"faxNumber"`
}

type Document struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Format       string `json:"format"`
	DocumentType string `json:"documentType"`
}

// ParseDate accepts the two timestamp shapes the upstream API emits:
// RFC 3339 and bare calendar dates.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
