package topicfy

import (
	"sort"
	"strings"
)

// ImageFacts is what the keyword rules look at. All fields are lowercase.
type ImageFacts struct {
	Origin string
	URL    string
	Hints  string // descriptive metadata, see ImageMetadata.HintText
}

// NewImageFacts lowercases the inputs.
func NewImageFacts(origin, url string, meta *ImageMetadata) ImageFacts {
	return ImageFacts{
		Origin: strings.ToLower(origin),
		URL:    strings.ToLower(url),
		Hints:  meta.HintText(),
	}
}

func (f ImageFacts) all() string { return f.Origin + " " + f.URL + " " + f.Hints }

// ClassificationRule is one predicate of the keyword classifier. Rules are
// tried from highest Priority down; the first match decides.
type ClassificationRule struct {
	Name     string
	Priority int
	Match    func(ImageFacts) bool
	Class    Classification
}

// ClassificationRules is the ordered keyword rule table.
var ClassificationRules = []ClassificationRule{
	{
		Name:     "banner-label",
		Priority: 100,
		Match:    func(f ImageFacts) bool { return strings.Contains(f.Origin, "banner") },
		Class:    ClassClean,
	},
	{
		Name:     "clean-keyword-cooccurs",
		Priority: 80,
		Match: func(f ImageFacts) bool {
			s := f.all()
			return matchesAny(s, TextHeavyPatterns) && matchesAny(s, CleanPatterns)
		},
		Class: ClassClean,
	},
	{
		Name:     "text-heavy-keyword",
		Priority: 60,
		Match:    func(f ImageFacts) bool { return matchesAny(f.all(), TextHeavyPatterns) },
		Class:    ClassTextHeavy,
	},
	{
		Name:     "default",
		Priority: 0,
		Match:    func(ImageFacts) bool { return true },
		Class:    ClassClean,
	},
}

var orderedRules = sortRules(ClassificationRules)

func sortRules(rules []ClassificationRule) []ClassificationRule {
	out := make([]ClassificationRule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// ClassifyByKeywords returns the class and the name of the rule that decided.
func ClassifyByKeywords(f ImageFacts) (Classification, string) {
	return classifyWith(orderedRules, f)
}

func classifyWith(rules []ClassificationRule, f ImageFacts) (Classification, string) {
	for _, r := range rules {
		if r.Match(f) {
			return r.Class, r.Name
		}
	}
	return ClassClean, "default"
}
