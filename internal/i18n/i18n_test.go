package i18n

import "testing"

func TestResolve(t *testing.T) {
	c := New("en")
	tests := map[string]string{
		"fr":    "fr",
		"fr-FR": "fr",
		"DE":    "de",
		"it_IT": "it",
		"es-MX": "es",
		"":      "en",
		"ja":    "en",
		"??":    "en",
	}
	for in, want := range tests {
		if got := c.Resolve(in); got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
	if got := New("xx").Default(); got != "en" {
		t.Fatalf("unsupported default = %q, want en", got)
	}
}

func TestTranslateFallbacks(t *testing.T) {
	c := New("en")
	if got := c.Translate("fr", "header.event"); got != "Événement" {
		t.Fatalf("fr header.event = %q", got)
	}
	// "field.hostname" exists only in en/fr tables.
	if got := c.Translate("de", "field.hostname"); got != "Hostname" {
		t.Fatalf("de fallback = %q, want English", got)
	}
	if got := c.Translate("de", "no.such.key"); got != "no.such.key" {
		t.Fatalf("missing key = %q, want key itself", got)
	}
	if got := c.Translatef("en", "group.more", map[string]string{"n": "3"}); got != "… and 3 more" {
		t.Fatalf("Translatef = %q", got)
	}
}

func TestEveryLocaleHasTitles(t *testing.T) {
	for _, l := range Supported {
		if _, ok := builtin[l]["title.auth.failed"]; !ok {
			t.Fatalf("locale %s is missing title.auth.failed", l)
		}
		if _, ok := dateStyles[l]; !ok {
			t.Fatalf("locale %s has no date style", l)
		}
	}
}
