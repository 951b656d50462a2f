package retarget

import (
	"sort"
	"strings"
	"unicode"
)

// Strategy identifies how a candidate name matched a rig name.
type Strategy int

const (
	MatchExact Strategy = iota
	MatchCaseInsensitive
	MatchUnderscoreStripped
	MatchSnakeCase
)

func (s Strategy) String() string {
	switch s {
	case MatchExact:
		return "exact"
	case MatchCaseInsensitive:
		return "case_insensitive"
	case MatchUnderscoreStripped:
		return "underscore_stripped"
	case MatchSnakeCase:
		return "snake_case"
	default:
		return "unknown"
	}
}

// Match describes a successful resolution.
type Match struct {
	Name      string   // concrete rig name
	Candidate string   // canonical or alternate name that matched
	Strategy  Strategy // how it matched
}

// Resolve finds the rig name for a role. Candidates are tried in order,
// canonical first, and for each candidate the strategies are tried in
// priority order. The first hit wins.
func Resolve(canonical string, alternates []string, available []string) (string, bool) {
	m, ok := newIndex(available).resolve(canonical, alternates)
	return m.Name, ok
}

// ResolveMatch is Resolve with the match details.
func ResolveMatch(canonical string, alternates []string, available []string) (Match, bool) {
	return newIndex(available).resolve(canonical, alternates)
}

// ResolveAll resolves every mapping against the available rig names.
// Roles that cannot be resolved are returned separately, sorted.
func ResolveAll(mappings []BoneMapping, available []string) (map[string]Match, []string) {
	idx := newIndex(available)
	resolved := make(map[string]Match, len(mappings))
	var missing []string
	for _, m := range mappings {
		if match, ok := idx.resolve(m.Role, m.Alternates); ok {
			resolved[m.Role] = match
			continue
		}
		missing = append(missing, m.Role)
	}
	sort.Strings(missing)
	return resolved, missing
}

// nameIndex answers exact and case-insensitive lookups. Where several rig
// names fold to the same key, the lexicographically smallest wins so results
// do not depend on map iteration order.
type nameIndex struct {
	exact map[string]struct{}
	fold  map[string]string
}

func newIndex(available []string) nameIndex {
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)

	idx := nameIndex{
		exact: make(map[string]struct{}, len(sorted)),
		fold:  make(map[string]string, len(sorted)),
	}
	for _, name := range sorted {
		idx.exact[name] = struct{}{}
		key := strings.ToLower(name)
		if _, ok := idx.fold[key]; !ok {
			idx.fold[key] = name
		}
	}
	return idx
}

func (idx nameIndex) resolve(canonical string, alternates []string) (Match, bool) {
	candidates := make([]string, 0, len(alternates)+1)
	candidates = append(candidates, canonical)
	candidates = append(candidates, alternates...)

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := idx.exact[c]; ok {
			return Match{Name: c, Candidate: c, Strategy: MatchExact}, true
		}
		if name, ok := idx.fold[strings.ToLower(c)]; ok {
			return Match{Name: name, Candidate: c, Strategy: MatchCaseInsensitive}, true
		}
		if stripped := strings.ReplaceAll(c, "_", ""); stripped != c {
			if _, ok := idx.exact[stripped]; ok {
				return Match{Name: stripped, Candidate: c, Strategy: MatchUnderscoreStripped}, true
			}
		}
		if snake := toSnake(c); snake != c {
			if _, ok := idx.exact[snake]; ok {
				return Match{Name: snake, Candidate: c, Strategy: MatchSnakeCase}, true
			}
		}
	}
	return Match{}, false
}

// toSnake converts camelCase or PascalCase to lower snake_case, inserting an
// underscore at each lower-to-upper boundary.
func toSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	var prev rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
		prev = r
	}
	return b.String()
}
