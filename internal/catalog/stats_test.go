package catalog

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestCategoryStats(t *testing.T) {
	stats := CategoryStats([]Product{
		{Category: "A", Price: 10.10},
		{Category: "A", Price: 20.20},
		{Category: "A", Price: 0.01},
		{Category: "B", Price: 5},
	})

	a := stats["A"]
	if a.Count != 3 || a.MinPrice != 0.01 || a.MaxPrice != 20.2 || a.AvgPrice != 10.1 {
		t.Fatalf("A=%+v", a)
	}
	b := stats["B"]
	if b.Count != 1 || b.MinPrice != 5 || b.MaxPrice != 5 || b.AvgPrice != 5 {
		t.Fatalf("B=%+v", b)
	}
	if len(CategoryStats(nil)) != 0 {
		t.Fatalf("empty input must give empty stats")
	}
}

func TestValidateImages(t *testing.T) {
	small := base64.StdEncoding.EncodeToString([]byte("tiny image"))
	big := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 2048)))

	cases := []struct {
		name   string
		images []string
		max    int
		want   error
	}{
		{"none", nil, 1024, nil},
		{"small", []string{small}, 1024, nil},
		{"data url", []string{"data:image/png;base64," + small}, 1024, nil},
		{"too large", []string{small, big}, 1024, ErrImageTooLarge},
		{"limit disabled", []string{big}, 0, nil},
		{"not base64", []string{"!!!"}, 1024, ErrInvalidImage},
		{"data url without payload", []string{"data:image/png;base64"}, 1024, ErrInvalidImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateImages(tc.images, tc.max); !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}
