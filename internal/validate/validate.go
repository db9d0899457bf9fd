// Package validate checks request parameters against fixed value tables.
// Rules are immutable after construction and safe to share between sessions.
package validate

import (
	"sort"
	"strings"
)

const (
	ParamQuery    = "q"
	ParamCategory = "category"
	ParamCountry  = "country"
	ParamLanguage = "language"

	DefaultCountry = "us"
)

// Params is a normalized parameter mapping.
type Params map[string]string

// Error is a validation failure whose text is shown to the client as-is.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

type valueSet struct {
	members map[string]struct{}
	listing string
}

func newValueSet(values ...string) valueSet {
	members := make(map[string]struct{}, len(values))
	for _, v := range values {
		members[v] = struct{}{}
	}
	sorted := make([]string, 0, len(members))
	for v := range members {
		sorted = append(sorted, v)
	}
	sort.Strings(sorted)
	return valueSet{members: members, listing: strings.Join(sorted, ", ")}
}

func (s valueSet) contains(v string) bool {
	_, ok := s.members[v]
	return ok
}

// Rules holds the allowed countries, languages and categories.
type Rules struct {
	countries  valueSet
	languages  valueSet
	categories valueSet
}

func NewRules(countries, languages, categories []string) Rules {
	return Rules{
		countries:  newValueSet(countries...),
		languages:  newValueSet(languages...),
		categories: newValueSet(categories...),
	}
}

var (
	defaultCountries  = []string{"au", "ca", "jp", "ae", "sa", "kr", "us", "ma"}
	defaultLanguages  = []string{"ar", "en"}
	defaultCategories = []string{"business", "general", "health", "science", "sports", "technology"}
)

func DefaultRules() Rules {
	return NewRules(defaultCountries, defaultLanguages, defaultCategories)
}

// Empty reports whether r is the zero value.
func (r Rules) Empty() bool {
	return r.countries.members == nil && r.languages.members == nil && r.categories.members == nil
}

// Countries returns the allowed country codes in sorted order.
func (r Rules) Countries() string { return r.countries.listing }

// Languages returns the allowed language codes in sorted order.
func (r Rules) Languages() string { return r.languages.listing }

// Categories returns the allowed categories in sorted order.
func (r Rules) Categories() string { return r.categories.listing }

// Headlines validates top-headlines parameters. With none of q, category or
// country present the country defaults to "us".
func (r Rules) Headlines(params map[string]string) (Params, error) {
	out := Params{}
	if raw, ok := params[ParamQuery]; ok {
		keyword := strings.TrimSpace(raw)
		if keyword == "" {
			return nil, &Error{Message: "Search keyword cannot be empty"}
		}
		out[ParamQuery] = keyword
	}
	if err := r.checkCategory(params, out); err != nil {
		return nil, err
	}
	if err := r.checkCountry(params, out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		out[ParamCountry] = DefaultCountry
	}
	return out, nil
}

// Sources validates sources parameters. No defaults are applied.
func (r Rules) Sources(params map[string]string) (Params, error) {
	out := Params{}
	if err := r.checkCategory(params, out); err != nil {
		return nil, err
	}
	if err := r.checkCountry(params, out); err != nil {
		return nil, err
	}
	if v, ok := params[ParamLanguage]; ok {
		if !r.languages.contains(v) {
			return nil, &Error{Message: "Invalid language. Choose from: " + r.languages.listing}
		}
		out[ParamLanguage] = v
	}
	return out, nil
}

func (r Rules) checkCategory(params map[string]string, out Params) error {
	v, ok := params[ParamCategory]
	if !ok {
		return nil
	}
	if !r.categories.contains(v) {
		return &Error{Message: "Invalid category. Choose from: " + r.categories.listing}
	}
	out[ParamCategory] = v
	return nil
}

func (r Rules) checkCountry(params map[string]string, out Params) error {
	v, ok := params[ParamCountry]
	if !ok {
		return nil
	}
	if !r.countries.contains(v) {
		return &Error{Message: "Invalid country code. Choose from: " + r.countries.listing}
	}
	out[ParamCountry] = v
	return nil
}
