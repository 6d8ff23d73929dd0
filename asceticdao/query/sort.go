package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sortFieldPattern = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_.]*$`)

// SortPair is one (field, direction) entry. Direction is 1 or -1 once validated.
type SortPair struct {
	Field     string
	Direction any
}

func Asc(field string) SortPair { return SortPair{Field: field, Direction: 1} }
func Desc(field string) SortPair { return SortPair{Field: field, Direction: -1} }

// SortMap is the mapping form with a stable field order. Plain Go maps have no
// order, so their keys are taken in lexicographic order instead.
type SortMap []SortPair

func (m *SortMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("sort map must be a JSON object, got %v", tok)
	}
	var pairs SortMap
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var direction any
		if err := dec.Decode(&direction); err != nil {
			return err
		}
		pairs = append(pairs, SortPair{Field: key, Direction: direction})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = pairs
	return nil
}

// DecodeSort decodes a JSON object into a SortMap and a JSON array into a pair
// list. Anything else is returned as the comma string form.
func DecodeSort(raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		var m SortMap
		if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
			return nil, Invalidf("invalid sort: %v", err)
		}
		return m, nil
	case strings.HasPrefix(trimmed, "["):
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		var list []any
		if err := dec.Decode(&list); err != nil {
			return nil, Invalidf("invalid sort: %v", err)
		}
		return list, nil
	}
	return raw, nil
}

type sortForm int

const (
	sortFormString sortForm = iota
	sortFormMapping
	sortFormPairs
)

// ValidateSort checks a comma string, a mapping or a pair list.
func ValidateSort(spec any) error {
	form, entries, err := sortEntries(spec)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if form == sortFormString {
			if !sortFieldPattern.MatchString(e.Field) {
				return Invalidf("invalid sort field: %s", e.Field)
			}
			continue
		}
		if !fieldPattern.MatchString(e.Field) {
			return Invalidf("invalid sort key: %s", e.Field)
		}
		if _, ok := sortDirection(e.Direction); !ok {
			return Invalidf("invalid sort value: %v for field %s, allowed values are -1 and 1", e.Direction, e.Field)
		}
	}
	return nil
}

type sortOptions struct {
	skipValidation bool
}

type SortOption func(*sortOptions)

// SkipSortValidation normalizes input already accepted by ValidateSort.
func SkipSortValidation() SortOption {
	return func(o *sortOptions) {
		o.skipValidation = true
	}
}

// NormalizeSort returns the canonical ordering, e.g. ["name", "-age"], with
// every "." replaced by separator. A field already holding separator is rejected.
func NormalizeSort(spec any, separator string, opts ...SortOption) ([]string, error) {
	var o sortOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.skipValidation {
		if err := ValidateSort(spec); err != nil {
			return nil, err
		}
	}
	form, entries, err := sortEntries(spec)
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		var token string
		if form == sortFormString {
			token = strings.TrimSpace(e.Field)
			if token == "" {
				continue
			}
		} else {
			token = strings.TrimSpace(e.Field)
			if direction, _ := sortDirection(e.Direction); direction == -1 {
				token = "-" + token
			}
		}
		if separator != "." && strings.Contains(token, separator) {
			return nil, Invalidf("invalid sort field: %s, %q is reserved for nested fields", strings.TrimPrefix(token, "-"), separator)
		}
		result = append(result, strings.ReplaceAll(token, ".", separator))
	}
	return result, nil
}

func sortEntries(spec any) (sortForm, []SortPair, error) {
	switch s := spec.(type) {
	case string:
		tokens := strings.Split(s, ",")
		entries := make([]SortPair, len(tokens))
		for i, token := range tokens {
			entries[i] = SortPair{Field: token}
		}
		return sortFormString, entries, nil
	case SortMap:
		return sortFormMapping, s, nil
	case []SortPair:
		return sortFormPairs, s, nil
	case map[string]int:
		return sortFormMapping, mappingEntries(s), nil
	case map[string]any:
		return sortFormMapping, mappingEntries(s), nil
	}

	items, ok := asSequence(spec)
	if !ok {
		return 0, nil, Invalidf("invalid sort type: %T, allowed types are str, dict, and list of tuples", spec)
	}
	entries := make([]SortPair, 0, len(items))
	for _, item := range items {
		if pair, ok := item.(SortPair); ok {
			entries = append(entries, pair)
			continue
		}
		pair, ok := asSequence(item)
		if !ok || len(pair) != 2 {
			return 0, nil, Invalidf("invalid sort item: %v, it should be a pair of size 2", item)
		}
		field, ok := pair[0].(string)
		if !ok {
			return 0, nil, Invalidf("invalid sort key: %v", pair[0])
		}
		entries = append(entries, SortPair{Field: field, Direction: pair[1]})
	}
	return sortFormPairs, entries, nil
}

func mappingEntries[V any](m map[string]V) []SortPair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]SortPair, len(keys))
	for i, k := range keys {
		entries[i] = SortPair{Field: k, Direction: m[k]}
	}
	return entries
}

// sortDirection accepts 1 and -1 as any integer kind, an integral float or a json.Number.
func sortDirection(value any) (int, bool) {
	var n float64
	switch v := value.(type) {
	case bool, nil, string:
		return 0, false
	case json.Number:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			n = rv.Float()
		default:
			return 0, false
		}
	}
	if n != 1 && n != -1 {
		return 0, false
	}
	return int(n), true
}
