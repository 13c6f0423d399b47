package datefmt

import (
	"testing"
	"time"
)

const tuscaStart int64 = 1668272400 // 2022-11-12T17:00:00Z

func TestFormatHumanDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		locale string
		want   string
	}{
		{locale: "pt-BR", want: "12/11/2022"},
		{locale: "pt", want: "12/11/2022"},
		{locale: "en-US", want: "11/12/2022"},
		{locale: "en-GB", want: "12/11/2022"},
		{locale: "de-DE", want: "12.11.2022"},
		{locale: "ja-JP", want: "2022/11/12"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			got, err := FormatHumanDate(tuscaStart, tt.locale, time.UTC)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFormatHumanDateDeterministic(t *testing.T) {
	t.Parallel()

	first, err := FormatHumanDate(tuscaStart, DefaultLocale, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for i := 0; i < 10; i++ {
		got, _ := FormatHumanDate(tuscaStart, DefaultLocale, nil)
		if got != first {
			t.Fatalf("expected stable output %s, got %s", first, got)
		}
	}
}

func TestFormatHumanDateUsesLocation(t *testing.T) {
	t.Parallel()

	tokyo, err := LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	got, err := FormatHumanDate(tuscaStart, "pt-BR", tokyo)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "13/11/2022" {
		t.Fatalf("expected 13/11/2022 in Tokyo, got %s", got)
	}
}

func TestLayoutRejectsMalformedLocale(t *testing.T) {
	t.Parallel()

	if _, err := Layout("not a locale!"); err == nil {
		t.Fatalf("expected error for malformed locale")
	}
}

func TestLoadLocationEmptyIsUTC(t *testing.T) {
	t.Parallel()

	loc, err := LoadLocation("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if loc != time.UTC {
		t.Fatalf("expected UTC, got %s", loc)
	}
}
