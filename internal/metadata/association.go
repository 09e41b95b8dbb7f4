package metadata

import (
	"sort"
	"strings"
)

// AssociationName derives the deterministic relationship name shared by both
// endpoints. The two entity short names are ordered lexicographically before
// joining, so either endpoint computes the identical string regardless of
// argument order; clients match navigation properties across entities solely
// by this name.
func AssociationName(nameA, nameB string, columns []string) string {
	if nameB < nameA {
		nameA, nameB = nameB, nameA
	}
	return "FK_" + nameA + "_" + nameB + "_" + strings.Join(columns, " ")
}

// splitColumns breaks a foreign key declaration into its column names;
// composite keys are comma separated.
func splitColumns(decl string) []string {
	var cols []string
	for _, c := range strings.Split(decl, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// mergeColumns unions two column lists into the canonical sorted form, the
// same from whichever endpoint the relation is seen.
func mergeColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var merged []string
	for _, c := range a {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			merged = append(merged, c)
		}
	}
	for _, c := range b {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			merged = append(merged, c)
		}
	}
	sort.Strings(merged)
	return merged
}
