// Package enrich turns raw OCDS releases into the internal tender shape,
// inferring a province and an industry category from free-text fields.
package enrich

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"

	"tendersync/db"
	"tendersync/internal/ocds"
)

// MapRelease projects one release onto the stored tender shape. It is a pure
// transformation; absent upstream values map to nil, never to "".
func MapRelease(rel ocds.Release) db.Tender {
	t := db.Tender{
		OCID:     rel.OCID,
		Title:    rel.Tender.Title,
		Industry: InferIndustry(rel.Tender.Title, rel.Tender.Description, rel.Tender.MainProcurementCategory),
	}

	t.Description = optional(rel.Tender.Description)
	t.Category = optional(rel.Tender.MainProcurementCategory)
	t.BuyerName = optional(rel.Buyer.Name)
	t.Department = optional(rel.Tender.ProcuringEntity.Name)
	t.BidNumber = optional(rel.Tender.ID)

	if ts, ok := ocds.ParseDate(rel.Tender.TenderPeriod.StartDate); ok {
		t.OpeningDate = &ts
	}
	if ts, ok := ocds.ParseDate(rel.Tender.TenderPeriod.EndDate); ok {
		t.CloseDate = &ts
	}

	if p, ok := InferProvince(
		rel.Buyer.Address.Locality,
		rel.Buyer.Address.Region,
		rel.Buyer.Address.StreetAddress,
		rel.Buyer.Name,
		rel.Tender.Title,
		rel.Tender.Description,
	); ok {
		t.Province = &p
	}

	t.ContactPerson = optional(rel.Buyer.ContactPoint.Name)
	t.ContactEmail = optional(rel.Buyer.ContactPoint.Email)
	t.ContactTelephone = optional(rel.Buyer.ContactPoint.Telephone)
	t.ContactFax = optional(rel.Buyer.ContactPoint.FaxNumber)
	t.SubmissionMethod = optional(strings.Join(rel.Tender.SubmissionMethod, ", "))
	t.SubmissionEmail = optional(submissionEmail(rel.Tender.SubmissionMethodDetails))
	t.RequiredFormat = optional(rel.Tender.RequiredFormat)
	t.FileSizeLimit = optional(rel.Tender.FileSizeLimit)

	if len(rel.Raw) > 0 {
		t.FullData = types.JSONText(rel.Raw)
	} else {
		t.FullData = types.JSONText("{}")
	}
	if len(rel.Tender.Documents) > 0 {
		if b, err := json.Marshal(rel.Tender.Documents); err == nil {
			t.Documents = types.JSONText(b)
		}
	}
	if t.Documents == nil {
		t.Documents = types.JSONText("[]")
	}
	if len(rel.Tender.Items) > 0 {
		t.Items = types.JSONText(rel.Tender.Items)
	} else {
		t.Items = types.JSONText("[]")
	}

	return t
}

// IsOpen reports whether a tender is still accepting submissions at the given
// instant. No close date means not open for statistics purposes.
func IsOpen(closeDate *time.Time, now time.Time) bool {
	return closeDate != nil && closeDate.After(now)
}

// InferProvince scans the location-bearing fields, in priority order, against
// the fixed province keyword table. The first matching rule wins.
func InferProvince(texts ...string) (string, bool) {
	haystack := searchString(texts)
	for _, rule := range provinceRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, kw) {
				return rule.Province, true
			}
		}
	}
	return "", false
}

// InferIndustry matches title, description and procurement category against
// the industry keyword table, falling back to DefaultIndustry.
func InferIndustry(texts ...string) string {
	haystack := searchString(texts)
	for _, rule := range industryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, kw) {
				return rule.Industry
			}
		}
	}
	return DefaultIndustry
}

// searchString builds one lowercase haystack padded with spaces so keywords
// anchored on word boundaries (like " it ") can match at text edges.
func searchString(texts []string) string {
	return " " + strings.ToLower(strings.Join(texts, " ")) + " "
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// submissionEmail pulls an address out of the free-form submission details
// when one is present.
func submissionEmail(details string) string {
	for _, field := range strings.Fields(details) {
		if strings.Contains(field, "@") && strings.Contains(field, ".") {
			return strings.Trim(field, ".,;:()<>")
		}
	}
	return ""
}
