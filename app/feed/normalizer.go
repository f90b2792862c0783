package feed

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxTitleLen    = 120
	maxCompanyLen  = 120
	maxLocationLen = 100
	maxLongTextLen = 1500
)

var (
	bracketedRe     = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	dashRunRe       = regexp.MustCompile(`[-_]{2,}`)
	spaceRunRe      = regexp.MustCompile(`\s{2,}`)
	provinceParenRe = regexp.MustCompile(`\s*\([A-Z]{2}\)\s*`)
	provinceDashRe  = regexp.MustCompile(`\s*-\s*[A-Z]{2}$`)
	legalSuffixRe   = regexp.MustCompile(`(?i)\b(S\.?R\.?L\.?|S\.?P\.?A\.?|S\.?N\.?C\.?|S\.?A\.?S\.?)\b`)
	legalAbbrevRe   = regexp.MustCompile(`\b(SRL|SPA|SNC|SAS)\b`)
	placeholderRe   = regexp.MustCompile(`(?i)^(confidential|azienda riservata|riservato|cliente riservato|n/d|nd|-)$`)
	nonSalaryRe     = regexp.MustCompile(`[^\d.,\-]`)
	leadingNumberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

var expiryLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
}

// Normalizer maps an extracted (and rule-mapped) record into the canonical
// job offer shape: alias resolution, text cleanup heuristics, contract and
// schedule classification, region inference and salary parsing.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Run builds the canonical record for one raw record. Returns nil when the
// record has no usable title; that is the sole hard validity gate.
func (n *Normalizer) Run(raw RawRecord, feedName, feedID string) *JobRecord {
	title := cleanTitle(firstAlias(raw, titleAliases))
	if title == "" {
		return nil
	}

	location := cleanLocation(firstAlias(raw, locationAliases))

	region := strings.TrimSpace(firstAlias(raw, regionAliases))
	if region == "" {
		region = InferRegion(location)
	}

	contractText := firstAlias(raw, contractAliases)
	scheduleText := firstAlias(raw, scheduleAliases)
	if scheduleText == "" {
		scheduleText = contractText
	}

	record := &JobRecord{
		Title:        title,
		Company:      cleanCompany(firstAlias(raw, companyAliases)),
		Location:     location,
		Region:       region,
		Category:     strings.TrimSpace(firstAlias(raw, categoryAliases)),
		Description:  truncate(firstAlias(raw, descriptionAliases), maxLongTextLen),
		Requirements: truncate(firstAlias(raw, requirementsAliases), maxLongTextLen),
		ApplyURL:     strings.TrimSpace(firstAlias(raw, applyURLAliases)),
		Source:       feedName,
		ContractType: ClassifyContractType(contractText),
		WorkSchedule: ClassifyWorkSchedule(scheduleText),
		SalaryMin:    parseSalary(firstAlias(raw, salaryMinAliases)),
		SalaryMax:    parseSalary(firstAlias(raw, salaryMaxAliases)),
		ExpiryDate:   normalizeExpiry(firstAlias(raw, expiryAliases)),
		IsActive:     true,
	}

	if upstream := firstAlias(raw, idAliases); upstream != "" {
		record.ExternalID = feedID + "_" + strings.TrimSpace(upstream)
	}

	return record
}

// cleanTitle strips bracketed internal codes, collapses dash/underscore runs
// and converts shouting titles to title case. Capped at 120 chars.
func cleanTitle(raw string) string {
	t := bracketedRe.ReplaceAllString(raw, "")
	t = dashRunRe.ReplaceAllString(t, " ")
	t = spaceRunRe.ReplaceAllString(t, " ")
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if isAllUpper(t) && len([]rune(t)) > 3 {
		t = titleCase(t)
	}
	return truncate(t, maxTitleLen)
}

// cleanCompany normalizes legal suffix casing (SRL, SPA, SNC, SAS), rejects
// placeholder names and fixes all-caps company names.
func cleanCompany(raw string) string {
	if raw == "" {
		return ""
	}
	c := legalSuffixRe.ReplaceAllStringFunc(raw, func(m string) string {
		return strings.ToUpper(strings.ReplaceAll(m, ".", ""))
	})
	c = spaceRunRe.ReplaceAllString(c, " ")
	c = strings.TrimSpace(c)
	if c == "" || placeholderRe.MatchString(c) {
		return ""
	}
	if isAllUpper(c) && len([]rune(c)) > 4 && !legalAbbrevRe.MatchString(c) {
		c = titleCase(c)
	}
	return truncate(c, maxCompanyLen)
}

// cleanLocation drops trailing province codes ("Milano (MI)", "Milano - MI")
// and fixes all-caps city names.
func cleanLocation(raw string) string {
	if raw == "" {
		return ""
	}
	l := provinceParenRe.ReplaceAllString(raw, " ")
	l = provinceDashRe.ReplaceAllString(l, "")
	l = spaceRunRe.ReplaceAllString(l, " ")
	l = strings.TrimSpace(l)
	if l == "" {
		return ""
	}
	if isAllUpper(l) && len([]rune(l)) > 2 {
		l = titleCase(l)
	}
	return truncate(l, maxLocationLen)
}

// contractKeywords is checked in order; the first category with a matching
// keyword wins. "indeterminat" must come before "determinat".
var contractKeywords = []struct {
	category string
	keywords []string
}{
	{ContractPermanent, []string{"indeterminat", "permanent", "unbefrist"}},
	{ContractFixedTerm, []string{"determinat", "fixed", "befrist", "temporary"}},
	{ContractApprenticeship, []string{"apprendist", "apprenti"}},
	{ContractInternship, []string{"stage", "tirocin", "intern", "trainee"}},
	{ContractFreelance, []string{"partita", "freelan", "vat", "p.iva"}},
	{ContractCollaboration, []string{"collabor"}},
	{ContractStaffingAgency, []string{"somministr", "temp agency", "leasing"}},
}

// ClassifyContractType maps free contract text onto the fixed enum.
// Returns "" when nothing matches; the field is then omitted, not defaulted.
func ClassifyContractType(raw string) string {
	if raw == "" {
		return ""
	}
	v := strings.ToLower(raw)
	for _, entry := range contractKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(v, kw) {
				return entry.category
			}
		}
	}
	return ""
}

// ClassifyWorkSchedule distinguishes part time from full time by keyword.
func ClassifyWorkSchedule(raw string) string {
	if raw == "" {
		return ""
	}
	v := strings.ToLower(raw)
	switch {
	case strings.Contains(v, "part") || strings.Contains(v, "ridott"):
		return SchedulePartTime
	case strings.Contains(v, "full") || strings.Contains(v, "pieno") || strings.Contains(v, "intero"):
		return ScheduleFullTime
	}
	return ""
}

// parseSalary extracts the first number from strings like "30.000 €" or
// "30000-40000". Unparsable input yields nil, never zero.
func parseSalary(raw string) *int {
	if raw == "" {
		return nil
	}
	cleaned := nonSalaryRe.ReplaceAllString(raw, "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	m := leadingNumberRe.FindString(cleaned)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	v := int(math.Round(f))
	return &v
}

// normalizeExpiry parses common upstream date spellings to YYYY-MM-DD.
func normalizeExpiry(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range expiryLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return ""
}

func titleCase(s string) string {
	return cases.Title(language.Italian).String(strings.ToLower(s))
}

func isAllUpper(s string) bool {
	return s == strings.ToUpper(s) && s != strings.ToLower(s)
}
