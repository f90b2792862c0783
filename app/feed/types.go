package feed

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pipeline types

// RawRecord is one extracted feed record: normalized lower_snake field names
// mapped to cleaned text values. The extractor enforces first-value-wins, so
// duplicate upstream tags never overwrite an earlier value.
type RawRecord map[string]string

func (r RawRecord) SetOnce(field, value string) {
	if value == "" {
		return
	}
	if _, ok := r[field]; ok {
		return
	}
	r[field] = value
}

// Lookup returns the value for field, falling back to a case-insensitive
// match so mapping rules may reference fields as published upstream.
func (r RawRecord) Lookup(field string) (string, bool) {
	if v, ok := r[field]; ok {
		return v, true
	}
	if v, ok := r[strings.ToLower(field)]; ok {
		return v, true
	}
	return "", false
}

// JobRecord is the canonical job offer persisted to the catalog store.
// Empty fields stay empty and are stored as NULL (sparse record).
type JobRecord struct {
	Title        string `json:"title"`
	Company      string `json:"company,omitempty"`
	Location     string `json:"location,omitempty"`
	Region       string `json:"region,omitempty"`
	Category     string `json:"category,omitempty"`
	Description  string `json:"description,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	ApplyURL     string `json:"apply_url,omitempty"`
	ExternalID   string `json:"external_id,omitempty"`
	Source       string `json:"source"`
	ContractType string `json:"contract_type,omitempty"`
	WorkSchedule string `json:"work_schedule,omitempty"`
	SalaryMin    *int   `json:"salary_min,omitempty"`
	SalaryMax    *int   `json:"salary_max,omitempty"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	IsActive     bool   `json:"is_active"`
	IsFeatured   bool   `json:"is_featured"`
}

// Contract type enum values produced by the normalizer.
const (
	ContractPermanent      = "tempo_indeterminato"
	ContractFixedTerm      = "tempo_determinato"
	ContractApprenticeship = "apprendistato"
	ContractInternship     = "stage"
	ContractFreelance      = "partita_iva"
	ContractCollaboration  = "collaborazione"
	ContractStaffingAgency = "somministrazione"
)

const (
	ScheduleFullTime = "full_time"
	SchedulePartTime = "part_time"
)

// Mapping rule types

// StringList accepts either a single string or a list in YAML and JSON, so
// operators can write `source: title` as well as `source: [city, state]`.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s *StringList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*s = many
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = StringList{single}
	return nil
}

type Replacement struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// MappingRule is one operator-authored transformation writing to Target.
// Static short-circuits the source lookup; Join defaults to a single space.
type MappingRule struct {
	Target   string        `yaml:"target" json:"target"`
	Source   StringList    `yaml:"source,omitempty" json:"source,omitempty"`
	Static   *string       `yaml:"static,omitempty" json:"static,omitempty"`
	Join     *string       `yaml:"join,omitempty" json:"join,omitempty"`
	Replace  []Replacement `yaml:"replace,omitempty" json:"replace,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix   string        `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	Truncate int           `yaml:"truncate,omitempty" json:"truncate,omitempty"`
}

// Configuration types

type Config struct {
	Name         string         // Derived from filename (without .yml extension)
	URL          string         `yaml:"url"`
	RecordTag    string         `yaml:"record_tag"`
	Notes        string         `yaml:"notes"`
	FieldMapping []MappingRule  `yaml:"field_mapping"`
	Settings     ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	Timeout         int  `yaml:"timeout"`          // seconds
}
