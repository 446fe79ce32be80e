// Package i18n holds the notification string tables and locale negotiation.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Supported locale codes, in matcher preference order.
var Supported = []string{"en", "fr", "de", "es", "it"}

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.French,
	language.German,
	language.Spanish,
	language.Italian,
})

// Catalog resolves translation keys. Lookups fall back from the requested
// locale to the default locale, then to English, then to the key itself.
type Catalog struct {
	def    string
	tables map[string]map[string]string
}

// New returns a catalog with the built-in tables and def as default locale.
// An unsupported def falls back to English.
func New(def string) *Catalog {
	c := &Catalog{def: "en", tables: builtin}
	c.def = c.Resolve(def)
	return c
}

// Default returns the default locale code.
func (c *Catalog) Default() string { return c.def }

// Resolve negotiates a locale code ("fr-FR", "DE", "it_IT") down to one of
// the supported codes. Empty or unsupported input yields the default.
func (c *Catalog) Resolve(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return c.def
	}
	tag, err := language.Parse(code)
	if err != nil {
		return c.def
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(Supported) {
		return c.def
	}
	return Supported[idx]
}

// Translate returns the string for key in locale.
func (c *Catalog) Translate(locale, key string) string {
	for _, l := range []string{locale, c.def, "en"} {
		if t, ok := c.tables[l]; ok {
			if s, ok := t[key]; ok {
				return s
			}
		}
	}
	return key
}

// Translatef translates key and substitutes {name} placeholders.
func (c *Catalog) Translatef(locale, key string, vars map[string]string) string {
	s := c.Translate(locale, key)
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

// DateStyle describes how a locale renders a timestamp.
type DateStyle struct {
	// Layout is a time.Format layout; the token "MON" is replaced by the
	// localized abbreviated month name.
	Layout string
	Months [12]string
}

// DateStyle returns the timestamp style for locale (default locale when unknown).
func (c *Catalog) DateStyle(locale string) DateStyle {
	if s, ok := dateStyles[locale]; ok {
		return s
	}
	if s, ok := dateStyles[c.def]; ok {
		return s
	}
	return dateStyles["en"]
}
