// Package datefmt renders epoch timestamps as short, locale-ordered calendar
// dates for operator-facing output.
package datefmt

import (
	"fmt"
	"time"
	_ "time/tzdata" // LoadLocation must work on hosts without zoneinfo

	"golang.org/x/text/language"
)

// DefaultLocale matches the locale the event organisers publish dates in.
const DefaultLocale = "pt-BR"

// layouts maps each supported locale to its numeric short-date layout. The
// first entry is the fallback for locales with no reasonable match.
var layouts = []struct {
	tag    language.Tag
	layout string
}{
	{language.Und, "2006-01-02"},
	{language.BrazilianPortuguese, "02/01/2006"},
	{language.EuropeanPortuguese, "02/01/2006"},
	{language.AmericanEnglish, "1/2/2006"},
	{language.BritishEnglish, "02/01/2006"},
	{language.German, "2.1.2006"},
	{language.French, "02/01/2006"},
	{language.Spanish, "2/1/2006"},
	{language.Italian, "2/1/2006"},
	{language.Dutch, "2-1-2006"},
	{language.Japanese, "2006/1/2"},
	{language.Chinese, "2006/1/2"},
}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(layouts))
	for i, l := range layouts {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// Layout returns the Go time layout used for the given BCP 47 locale.
func Layout(locale string) (string, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("datefmt: parse locale %q: %w", locale, err)
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		idx = 0
	}
	return layouts[idx].layout, nil
}

// FormatHumanDate formats epochSeconds as a calendar date in loc using the
// day/month/year ordering of locale. A nil loc means UTC.
func FormatHumanDate(epochSeconds int64, locale string, loc *time.Location) (string, error) {
	layout, err := Layout(locale)
	if err != nil {
		return "", err
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(epochSeconds, 0).In(loc).Format(layout), nil
}

// LoadLocation resolves an IANA zone name. The empty string means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("datefmt: load location %q: %w", name, err)
	}
	return loc, nil
}
