package index

import "github.com/redical/redical/value"

// Inverted is a many-to-many term -> event UID index (CATEGORIES,
// RELATED-TO, CLASS). It keeps a reverse map from UID to the terms it's
// currently posted under, so Remove and Update are O(|terms|) rather than a
// full scan.
type Inverted struct {
	forward map[string]map[value.UID]struct{} // term -> set of uid
	reverse map[value.UID]map[string]struct{} // uid -> set of term
}

// NewInverted constructs an empty inverted index.
func NewInverted() *Inverted {
	return &Inverted{
		forward: make(map[string]map[value.UID]struct{}),
		reverse: make(map[value.UID]map[string]struct{}),
	}
}

// Insert adds uid to every term's posting list. Idempotent per term.
func (idx *Inverted) Insert(uid value.UID, terms []string) {
	for _, term := range terms {
		idx.insertOne(uid, term)
	}
}

func (idx *Inverted) insertOne(uid value.UID, term string) {
	postings, ok := idx.forward[term]
	if !ok {
		postings = make(map[value.UID]struct{})
		idx.forward[term] = postings
	}
	postings[uid] = struct{}{}

	terms, ok := idx.reverse[uid]
	if !ok {
		terms = make(map[string]struct{})
		idx.reverse[uid] = terms
	}
	terms[term] = struct{}{}
}

func (idx *Inverted) removeOne(uid value.UID, term string) {
	if postings, ok := idx.forward[term]; ok {
		delete(postings, uid)
		if len(postings) == 0 {
			delete(idx.forward, term)
		}
	}
	if terms, ok := idx.reverse[uid]; ok {
		delete(terms, term)
		if len(terms) == 0 {
			delete(idx.reverse, uid)
		}
	}
}

// Remove drops uid from every term it's currently posted under, using the
// reverse map to avoid a full scan of forward: O(|terms|).
func (idx *Inverted) Remove(uid value.UID) {
	terms := idx.reverse[uid]
	for term := range terms {
		if postings, ok := idx.forward[term]; ok {
			delete(postings, uid)
			if len(postings) == 0 {
				delete(idx.forward, term)
			}
		}
	}
	delete(idx.reverse, uid)
}

// Update replaces uid's posted terms with newTerms, touching only the
// symmetric-diff terms rather than a remove-then-reinsert of everything.
func (idx *Inverted) Update(uid value.UID, newTerms []string) {
	current := idx.reverse[uid]
	newSet := make(map[string]struct{}, len(newTerms))
	for _, t := range newTerms {
		newSet[t] = struct{}{}
	}

	for term := range current {
		if _, keep := newSet[term]; !keep {
			idx.removeOne(uid, term)
		}
	}
	for term := range newSet {
		if _, had := current[term]; !had {
			idx.insertOne(uid, term)
		}
	}
}

// Lookup returns the set of event UIDs posted under term.
func (idx *Inverted) Lookup(term string) map[value.UID]struct{} {
	postings := idx.forward[term]
	out := make(map[value.UID]struct{}, len(postings))
	for uid := range postings {
		out[uid] = struct{}{}
	}
	return out
}

// Rebuild clears both maps; callers reinsert via Insert per surviving event.
func (idx *Inverted) Rebuild() {
	idx.forward = make(map[string]map[value.UID]struct{})
	idx.reverse = make(map[value.UID]map[string]struct{})
}

var _ Index = (*Inverted)(nil)
