package calendar

import (
	"fmt"
	"sort"
)

// categoryTerms returns e's CATEGORIES as index terms.
func categoryTerms(e *Event) []string {
	if e.Categories.Len() == 0 {
		return nil
	}
	return append([]string(nil), e.Categories.Terms()...)
}

// classTerms returns e's CLASS as a single-element index term set, or nil if
// unset.
func classTerms(e *Event) []string {
	if e.Class == "" {
		return nil
	}
	return []string{e.Class}
}

// relatedToTerms flattens e's RELATED-TO multimap into "RELTYPE\x1fvalue"
// index terms, one per (reltype, value) pair.
func relatedToTerms(e *Event) []string {
	if len(e.RelatedTo) == 0 {
		return nil
	}
	terms := make([]string, 0, len(e.RelatedTo))
	for reltype, values := range e.RelatedTo {
		for _, v := range values {
			terms = append(terms, relatedToTerm(reltype, v))
		}
	}
	sort.Strings(terms)
	return terms
}

func relatedToTerm(reltype, value string) string {
	return fmt.Sprintf("%s\x1f%s", reltype, value)
}
