// Package pathmap implements the PathMapper collaborator: translating
// upstream-reported paths into locally accessible ones via longest-prefix
// match over a configured table.
package pathmap

import (
	"fmt"
	"sort"
	"strings"
)

// Mapping is one entry of the configured translation table.
type Mapping struct {
	Prefix    string
	LocalRoot string
}

// Mapper performs longest-prefix-match translation. Grounded on the
// teacher's backend/internal/utils/pathresolver.go "try candidate paths"
// idiom, adapted to the spec's explicit longest-prefix-match contract
// rather than a fixed list of Docker/local variants.
type Mapper struct {
	mappings []Mapping // sorted by descending prefix length
}

// New builds a Mapper from a configured table. Mappings are sorted so
// Translate always matches the longest applicable prefix first.
func New(mappings []Mapping) *Mapper {
	sorted := make([]Mapping, len(mappings))
	copy(sorted, mappings)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Mapper{mappings: sorted}
}

// ErrNoMapping is returned when no configured prefix matches the path.
type ErrNoMapping struct {
	Path string
}

func (e *ErrNoMapping) Error() string {
	return fmt.Sprintf("pathmap: no mapping configured for path %q", e.Path)
}

// Translate maps an externally-reported path to a local path using
// longest-prefix match. It returns *ErrNoMapping if nothing matches.
func (m *Mapper) Translate(externalPath string) (string, error) {
	for _, mapping := range m.mappings {
		if strings.HasPrefix(externalPath, mapping.Prefix) {
			rest := strings.TrimPrefix(externalPath, mapping.Prefix)
			rest = strings.TrimPrefix(rest, "/")
			if rest == "" {
				return mapping.LocalRoot, nil
			}
			return strings.TrimRight(mapping.LocalRoot, "/") + "/" + rest, nil
		}
	}
	return "", &ErrNoMapping{Path: externalPath}
}
