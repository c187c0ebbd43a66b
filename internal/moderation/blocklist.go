package moderation

import "strings"

// DefaultBlockedTerms is the fixed denylist applied to prompts before any
// upstream call. Matching is exact substring, not word-boundary aware: a
// prompt like "assholeless" trips the "asshole" entry. That false positive
// is accepted behavior, not a bug.
var DefaultBlockedTerms = []string{
	"prakhardoneria3@gmail.com",
	"gmail.com",
	"doneria",
	"fuck",
	"gaza",
	"israel",
	"palestine",
	"hamas",
	"shit",
	"bitch",
	"asshole",
	"bastard",
	"dick",
	"cunt",
	"whore",
	"slut",
	"nigger",
	"faggot",
	"motherfucker",
	"piss",
	"twat",
	"cock",
	"pussy",
	"bikini",
	"breast",
	"horny",
	"sexy",
}

// Blocklist is a crude case-insensitive substring prefilter.
type Blocklist struct {
	terms []string
}

// NewBlocklist creates a blocklist from the given terms
func NewBlocklist(terms []string) *Blocklist {
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}
	return &Blocklist{terms: lowered}
}

// NewDefaultBlocklist creates a blocklist with the built-in term set
func NewDefaultBlocklist() *Blocklist {
	return NewBlocklist(DefaultBlockedTerms)
}

// Match returns the first blocked term contained in the prompt, if any.
func (b *Blocklist) Match(prompt string) (string, bool) {
	lowered := strings.ToLower(prompt)
	for _, term := range b.terms {
		if strings.Contains(lowered, term) {
			return term, true
		}
	}
	return "", false
}
