package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// columnPriority lists the columns that lead an export, in order.
var columnPriority = []string{
	"full_name",
	"first_name",
	"last_name",
	"email",
	"phone",
	"company",
	"job_title",
	"website",
	"linkedin_url",
	"address",
	"city",
	"state",
	"zip",
	"country",
	"source",
	"tags",
	"notes",
}

var priorityIndex = func() map[string]int {
	m := make(map[string]int, len(columnPriority))
	for i, c := range columnPriority {
		m[c] = i
	}
	return m
}()

// strippedKeys never appear in a flattened contact.
var strippedKeys = map[string]bool{"id": true, "audience_id": true, "created_at": true}

// internalColumn is tracked on contacts but never exported.
const internalColumn = "uuid"

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// flatten merges data under known and drops internal keys and empty values.
// A key in known always wins over the same key in data, even when its value
// is empty and is dropped afterwards.
func flatten(known map[string]any, data map[string]any) map[string]any {
	out := make(map[string]any, len(known)+len(data))
	for k, v := range data {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	for k, v := range out {
		if strippedKeys[k] || isEmpty(v) {
			delete(out, k)
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case *string:
		return t == nil || *t == ""
	}
	return false
}

// orderColumns returns the union of keys across contacts, priority columns
// first, the rest in collated alphabetical order.
func orderColumns(contacts []map[string]any) []string {
	seen := make(map[string]bool)
	var listed, rest []string
	for _, c := range contacts {
		for k := range c {
			if k == internalColumn || seen[k] {
				continue
			}
			seen[k] = true
			if _, ok := priorityIndex[k]; ok {
				listed = append(listed, k)
			} else {
				rest = append(rest, k)
			}
		}
	}

	sort.Slice(listed, func(i, j int) bool {
		return priorityIndex[listed[i]] < priorityIndex[listed[j]]
	})
	collate.New(language.English).SortStrings(rest)

	return append(listed, rest...)
}

// humanize turns "job_title" into "Job Title".
func humanize(column string) string {
	s := strings.ReplaceAll(column, "_", " ")
	var b strings.Builder
	b.Grow(len(s))
	prevWord := false
	for _, r := range s {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		if isWord && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = isWord
	}
	return b.String()
}

// cellText renders a value the way it should appear inside a CSV cell.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// renderCSV writes the header and one numbered row per contact. Every cell
// is quoted; rows are separated by "\n".
func renderCSV(columns []string, contacts []map[string]any) string {
	var b strings.Builder

	b.WriteString(quote("S.No."))
	for _, c := range columns {
		b.WriteByte(',')
		b.WriteString(quote(humanize(c)))
	}

	for i, contact := range contacts {
		b.WriteByte('\n')
		b.WriteString(quote(strconv.Itoa(i + 1)))
		for _, c := range columns {
			b.WriteByte(',')
			b.WriteString(quote(cellText(contact[c])))
		}
	}
	return b.String()
}

// exportFilename derives the download name from an audience name.
func exportFilename(name string) string {
	return nonAlphanumeric.ReplaceAllString(name, "_") + "_export.csv"
}
