package provider

import "strings"

// DefaultCategoryKeywords maps activity categories to the words that mark a
// feed entry as belonging to them.
var DefaultCategoryKeywords = map[string][]string{
	"museums":   {"museum", "gallery", "exhibit", "exhibition", "art show"},
	"hiking":    {"hike", "hiking", "trail", "trek", "walking tour"},
	"beaches":   {"beach", "surf", "coast", "seaside", "snorkel"},
	"nightlife": {"nightlife", "club", "concert", "live music", "dj"},
	"food":      {"food", "festival", "tasting", "market", "restaurant"},
	"parks":     {"park", "garden", "botanical", "picnic"},
	"shopping":  {"shopping", "fair", "bazaar", "outlet"},
}

// CategoryMatcher decides whether free text relates to any of a set of
// activity categories.
type CategoryMatcher struct {
	keywords []string
	exclude  []string
}

// NewCategoryMatcher builds a matcher for categories. A category without a
// keyword entry matches on its own name. extra maps additional keywords per
// category; exclude vetoes a match outright.
func NewCategoryMatcher(categories []string, extra map[string][]string, exclude []string) *CategoryMatcher {
	var keywords []string
	for _, cat := range categories {
		cat = strings.ToLower(strings.TrimSpace(cat))
		if cat == "" {
			continue
		}
		words, ok := DefaultCategoryKeywords[cat]
		if !ok {
			words = []string{cat}
		}
		keywords = append(keywords, words...)
		keywords = append(keywords, extra[cat]...)
	}

	for i, kw := range keywords {
		keywords[i] = strings.ToLower(kw)
	}

	ex := make([]string, len(exclude))
	for i, kw := range exclude {
		ex[i] = strings.ToLower(kw)
	}

	return &CategoryMatcher{keywords: keywords, exclude: ex}
}

// Matches reports whether text mentions any category keyword.
func (m *CategoryMatcher) Matches(text string) bool {
	lower := strings.ToLower(text)

	for _, ex := range m.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	for _, kw := range m.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
