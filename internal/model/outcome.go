package model

import (
	"encoding/json"
	"time"
)

// Phase names accepted by the orchestrator.
const (
	PhaseCompany  = "company"
	PhaseLinkedIn = "linkedin"
	PhaseNews     = "news"
	PhaseWeb      = "web"
	PhaseAll      = "all"
)

// AllPhases lists every enrichment phase in execution order.
var AllPhases = []string{PhaseCompany, PhaseLinkedIn, PhaseNews, PhaseWeb}

// KnownPhase reports whether name is a valid phase selector.
func KnownPhase(name string) bool {
	if name == PhaseAll {
		return true
	}
	for _, p := range AllPhases {
		if p == name {
			return true
		}
	}
	return false
}

// PhaseData is the typed payload a phase attaches to its outcome. Keys
// returns the top-level data keys the phase produced; the validator counts
// keys seen from more than one source for its consistency factor.
type PhaseData interface {
	Phase() string
	Keys() []string
}

// CompanyData is the company phase payload.
type CompanyData struct {
	EmployeeCount         *int   `json:"employee_count,omitempty"`
	RevenueAmount         *int64 `json:"revenue_amount,omitempty"`
	IndustryBusinessModel string `json:"industry_business_model,omitempty"`
	Overview              string `json:"overview,omitempty"`
	Website               string `json:"website,omitempty"`
}

func (CompanyData) Phase() string { return PhaseCompany }

func (d CompanyData) Keys() []string {
	var keys []string
	if d.EmployeeCount != nil {
		keys = append(keys, "employee_count")
	}
	if d.RevenueAmount != nil {
		keys = append(keys, "revenue_amount")
	}
	if d.IndustryBusinessModel != "" {
		keys = append(keys, "industry_business_model")
	}
	if d.Overview != "" {
		keys = append(keys, "overview")
	}
	if d.Website != "" {
		keys = append(keys, "website")
	}
	return keys
}

// LinkedInProfile is one profile candidate resolved by the linkedin phase.
type LinkedInProfile struct {
	ExecutiveName string `json:"executive_name,omitempty"`
	Title         string `json:"title,omitempty"`
	URL           string `json:"url"`
}

// LinkedInData is the linkedin phase payload.
type LinkedInData struct {
	Profiles []LinkedInProfile `json:"profiles,omitempty"`
	Company  string            `json:"company,omitempty"`
	Website  string            `json:"website,omitempty"`
}

func (LinkedInData) Phase() string { return PhaseLinkedIn }

func (d LinkedInData) Keys() []string {
	var keys []string
	if len(d.Profiles) > 0 {
		keys = append(keys, "profiles")
	}
	if d.Company != "" {
		keys = append(keys, "company")
	}
	if d.Website != "" {
		keys = append(keys, "website")
	}
	return keys
}

// NewsData is the news phase payload.
type NewsData struct {
	Items              []NewsItem `json:"items,omitempty"`
	RecentDevelopments string     `json:"recent_developments,omitempty"`
}

func (NewsData) Phase() string { return PhaseNews }

func (d NewsData) Keys() []string {
	var keys []string
	if len(d.Items) > 0 {
		keys = append(keys, "items")
	}
	if d.RecentDevelopments != "" {
		keys = append(keys, "recent_developments")
	}
	return keys
}

// WebPageResult records one scrape target's result within the web phase.
type WebPageResult struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Title   string `json:"title,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WebData is the web-scraping phase payload.
type WebData struct {
	Pages    []WebPageResult `json:"pages,omitempty"`
	Overview string          `json:"overview,omitempty"`
	Website  string          `json:"website,omitempty"`
}

func (WebData) Phase() string { return PhaseWeb }

func (d WebData) Keys() []string {
	var keys []string
	if len(d.Pages) > 0 {
		keys = append(keys, "pages")
	}
	if d.Overview != "" {
		keys = append(keys, "overview")
	}
	if d.Website != "" {
		keys = append(keys, "website")
	}
	return keys
}

// EnrichmentOutcome is the per-phase, per-run result consumed by the
// validator and the final merge. It is never independently persisted except
// embedded in enrichment_metadata and the API call audit log.
type EnrichmentOutcome struct {
	Phase         string    `json:"phase"`
	Source        string    `json:"source"`
	Success       bool      `json:"success"`
	PrimarySource string    `json:"primary_source,omitempty"`
	FallbackUsed  bool      `json:"fallback_used"`
	Data          PhaseData `json:"data,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	FieldsUpdated        []string `json:"fields_updated,omitempty"`
	ExecutivesUpdated    int      `json:"executives_updated,omitempty"`
	NewItemsAdded        int      `json:"new_items_added,omitempty"`
	FilteredLowRelevance int      `json:"filtered_low_relevance,omitempty"`
}

// DataKeys returns the outcome's top-level data keys, or nil when the phase
// produced no data.
func (o EnrichmentOutcome) DataKeys() []string {
	if o.Data == nil {
		return nil
	}
	return o.Data.Keys()
}

// outcomeJSON mirrors EnrichmentOutcome with the payload held raw so the
// typed PhaseData can be restored from the phase tag on decode.
type outcomeJSON struct {
	Phase         string          `json:"phase"`
	Source        string          `json:"source"`
	Success       bool            `json:"success"`
	PrimarySource string          `json:"primary_source,omitempty"`
	FallbackUsed  bool            `json:"fallback_used"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`

	FieldsUpdated        []string `json:"fields_updated,omitempty"`
	ExecutivesUpdated    int      `json:"executives_updated,omitempty"`
	NewItemsAdded        int      `json:"new_items_added,omitempty"`
	FilteredLowRelevance int      `json:"filtered_low_relevance,omitempty"`
}

// UnmarshalJSON restores the concrete PhaseData type from the phase tag.
func (o *EnrichmentOutcome) UnmarshalJSON(b []byte) error {
	var aux outcomeJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	o.Phase = aux.Phase
	o.Source = aux.Source
	o.Success = aux.Success
	o.PrimarySource = aux.PrimarySource
	o.FallbackUsed = aux.FallbackUsed
	o.Error = aux.Error
	o.Timestamp = aux.Timestamp
	o.FieldsUpdated = aux.FieldsUpdated
	o.ExecutivesUpdated = aux.ExecutivesUpdated
	o.NewItemsAdded = aux.NewItemsAdded
	o.FilteredLowRelevance = aux.FilteredLowRelevance
	o.Data = nil

	if len(aux.Data) == 0 {
		return nil
	}

	switch aux.Phase {
	case PhaseCompany:
		var d CompanyData
		if err := json.Unmarshal(aux.Data, &d); err != nil {
			return err
		}
		o.Data = d
	case PhaseLinkedIn:
		var d LinkedInData
		if err := json.Unmarshal(aux.Data, &d); err != nil {
			return err
		}
		o.Data = d
	case PhaseNews:
		var d NewsData
		if err := json.Unmarshal(aux.Data, &d); err != nil {
			return err
		}
		o.Data = d
	case PhaseWeb:
		var d WebData
		if err := json.Unmarshal(aux.Data, &d); err != nil {
			return err
		}
		o.Data = d
	}

	return nil
}
