package service

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderColumns(t *testing.T) {
	tests := []struct {
		name     string
		contacts []map[string]any
		want     []string
	}{
		{
			name:     "priority then alphabetical",
			contacts: []map[string]any{{"company": "Acme", "zzz_custom": "1", "email": "a@x.com"}},
			want:     []string{"email", "company", "zzz_custom"},
		},
		{
			name: "union across contacts",
			contacts: []map[string]any{
				{"email": "a@x.com", "uuid": "hidden"},
				{"full_name": "Ann", "region": "EU"},
				{"budget": "10k", "phone": "555"},
			},
			want: []string{"full_name", "email", "phone", "budget", "region"},
		},
		{
			name:     "collated ignores case for ordering",
			contacts: []map[string]any{{"gamma": 1, "Beta": 2, "alpha": 3}},
			want:     []string{"alpha", "Beta", "gamma"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderColumns(tt.contacts))
		})
	}
}

func TestHumanize(t *testing.T) {
	cases := map[string]string{
		"full_name":    "Full Name",
		"email":        "Email",
		"linkedin_url": "Linkedin Url",
		"e-mail":       "E-Mail",
		"x2_y":         "X2 Y",
		"already Up":   "Already Up",
	}
	for in, want := range cases {
		assert.Equal(t, want, humanize(in), in)
	}
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", cellText(nil))
	assert.Equal(t, "plain", cellText("plain"))
	assert.Equal(t, "42.50", cellText(json.Number("42.50")))
	assert.Equal(t, "true", cellText(true))
	assert.Equal(t, "3.5", cellText(3.5))
	assert.Equal(t, `{"a":1}`, cellText(map[string]any{"a": json.Number("1")}))
	assert.Equal(t, `["x","y"]`, cellText([]any{"x", "y"}))
}

func TestRenderCSV(t *testing.T) {
	columns := []string{"email", "company", "tags_extra"}
	contacts := []map[string]any{
		{"email": "a@x.com", "company": "Acme"},
		{"email": "b@x.com", "tags_extra": []any{"vip"}},
	}

	got := renderCSV(columns, contacts)
	want := strings.Join([]string{
		`"S.No.","Email","Company","Tags Extra"`,
		`"1","a@x.com","Acme",""`,
		`"2","b@x.com","","[""vip""]"`,
	}, "\n")
	assert.Equal(t, want, got)
	assert.Len(t, strings.Split(got, "\n"), len(contacts)+1)
}

func TestRenderCSVEscapingRoundTrips(t *testing.T) {
	original := `He said "hi", then left`
	got := renderCSV([]string{"notes"}, []map[string]any{{"notes": original}})

	assert.Contains(t, got, `"He said ""hi"", then left"`)

	records, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, original, records[1][1])
}

func TestFlatten(t *testing.T) {
	known := map[string]any{
		"id":          "c1",
		"audience_id": "a1",
		"email":       "known@x.com",
		"phone":       nil,
		"company":     "",
	}
	data := map[string]any{
		"email":      "data@x.com",
		"phone":      "555-0100",
		"company":    "DataCo",
		"region":     "EU",
		"empty":      "",
		"created_at": "2026-01-01",
		"score":      json.Number("7"),
	}

	got := flatten(known, data)
	assert.Equal(t, map[string]any{
		"email":  "known@x.com",
		"region": "EU",
		"score":  json.Number("7"),
	}, got)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "Q1_Leads__EU___export.csv", exportFilename("Q1 Leads (EU)!"))
	assert.Equal(t, "plain_export.csv", exportFilename("plain"))
}
