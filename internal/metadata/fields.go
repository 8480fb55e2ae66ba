package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// Fields is the set of optional attributes an editor variant persists.
// The stream URL and the samples are always persisted.
type Fields uint8

const (
	// FieldTitle persists the track title.
	FieldTitle Fields = 1 << iota
	// FieldDuration persists the track duration in milliseconds.
	FieldDuration
)

// Presets name the editor variants.
const (
	FieldsMinimal = Fields(0)
	FieldsTitled  = FieldTitle
	FieldsFull    = FieldTitle | FieldDuration
)

var fieldNames = map[string]Fields{
	"title":    FieldTitle,
	"duration": FieldDuration,
}

var presetNames = map[string]Fields{
	"minimal": FieldsMinimal,
	"titled":  FieldsTitled,
	"full":    FieldsFull,
}

// Has reports whether every field in f is requested.
func (fs Fields) Has(f Fields) bool {
	return fs&f == f
}

// String lists the requested fields, comma separated.
func (fs Fields) String() string {
	var names []string
	for name, f := range fieldNames {
		if fs.Has(f) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "minimal"
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// ParseFields accepts a preset name (minimal, titled, full) or a comma
// separated list of field names.
func ParseFields(s string) (Fields, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FieldsFull, nil
	}
	if preset, ok := presetNames[s]; ok {
		return preset, nil
	}

	var fs Fields
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, ok := fieldNames[part]
		if !ok {
			return 0, fmt.Errorf("unknown field %q", part)
		}
		fs |= f
	}
	return fs, nil
}
