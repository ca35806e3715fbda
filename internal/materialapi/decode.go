package materialapi

import (
	"errors"
	"strings"

	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("analysis service returned invalid JSON")

// decodeAnalysis reads the analysis fields leniently: keys match case
// insensitively and list values are joined so they still bulletize.
func decodeAnalysis(body []byte) (*models.Analysis, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errInvalidJSON
	}

	fields := map[string]gjson.Result{}
	root.ForEach(func(key, value gjson.Result) bool {
		k := strings.ToLower(key.String())
		if _, seen := fields[k]; !seen {
			fields[k] = value
		}
		return true
	})

	return &models.Analysis{
		Material:   text(fields["material"], " "),
		Colour:     text(first(fields, "colour", "color"), ", "),
		Properties: text(fields["properties"], ". "),
		Uses:       text(fields["uses"], ". "),
	}, nil
}

func text(v gjson.Result, sep string) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.IsArray():
		var parts []string
		for _, item := range v.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	default:
		return strings.TrimSpace(v.String())
	}
}

func first(fields map[string]gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v
		}
	}
	return gjson.Result{}
}
