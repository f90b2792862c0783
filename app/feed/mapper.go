package feed

import (
	"strings"
)

// Mapper applies a feed's operator-authored mapping rules on top of the
// extracted fields, producing the enriched record the normalizer consumes.
type Mapper struct{}

func NewMapper() *Mapper {
	return &Mapper{}
}

// Run applies rules in order. Each rule writes to its target field; for the
// same target the last rule wins. A rule whose sources all miss is a no-op,
// never an empty overwrite.
func (m *Mapper) Run(raw RawRecord, rules []MappingRule) RawRecord {
	if len(rules) == 0 {
		return raw
	}

	mapped := make(RawRecord, len(raw))
	for k, v := range raw {
		mapped[k] = v
	}

	for _, rule := range rules {
		if rule.Target == "" {
			continue
		}

		if rule.Static != nil {
			mapped[rule.Target] = *rule.Static
			continue
		}

		var values []string
		for _, source := range rule.Source {
			if v, ok := raw.Lookup(source); ok && v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		join := " "
		if rule.Join != nil {
			join = *rule.Join
		}
		val := strings.Join(values, join)

		for _, rep := range rule.Replace {
			if rep.From == "" {
				continue
			}
			val = strings.ReplaceAll(val, rep.From, rep.To)
		}
		if rule.Prefix != "" {
			val = rule.Prefix + val
		}
		if rule.Suffix != "" {
			val = val + rule.Suffix
		}
		if rule.Truncate > 0 {
			val = truncate(val, rule.Truncate)
		}

		mapped[rule.Target] = val
	}

	return mapped
}
