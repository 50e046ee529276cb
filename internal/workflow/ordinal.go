// Package workflow implements the guided batch-rename workflow: grouping
// related groups by their base name, choosing an ordinal range, and renaming
// the range with a contiguous renumbering.
package workflow

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

var (
	trailingOrdinal = regexp.MustCompile(`(\d+)\s*$`)
	anyOrdinal      = regexp.MustCompile(`\d+`)
	trailingSuffix  = regexp.MustCompile(`\s*\d+\s*$`)
)

// ExtractOrdinal returns the integer at the end of name, else the first
// integer anywhere in name, else 0.
//
//	"HK 12"       -> 12
//	"Group7Extra" -> 7
//	"NoDigits"    -> 0
func ExtractOrdinal(name string) int {
	if m := trailingOrdinal.FindStringSubmatch(name); m != nil {
		return atoi(m[1])
	}
	if m := anyOrdinal.FindString(name); m != "" {
		return atoi(m)
	}
	return 0
}

// BaseName strips a trailing ordinal and the whitespace around it. A name
// that is nothing but digits is its own base name.
func BaseName(name string) string {
	base := strings.TrimSpace(trailingSuffix.ReplaceAllString(name, ""))
	if base == "" {
		return strings.TrimSpace(name)
	}
	return base
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		// Only overflow can fail here.
		return 0
	}
	return n
}

// Member is a group together with its resolved ordinal.
type Member struct {
	Group   ports.Group
	Ordinal int
}

// Cluster is a set of groups sharing a base name, sorted by ordinal.
type Cluster struct {
	Base    string
	Members []Member
}

// Ordinals returns the members' ordinals in ascending order.
func (c Cluster) Ordinals() []int {
	out := make([]int, len(c.Members))
	for i, m := range c.Members {
		out[i] = m.Ordinal
	}
	return out
}

// HasOrdinal reports whether any member carries ordinal n.
func (c Cluster) HasOrdinal(n int) bool {
	for _, m := range c.Members {
		if m.Ordinal == n {
			return true
		}
	}
	return false
}

// InRange returns the members whose ordinal lies in [start, end], in
// ascending ordinal order.
func (c Cluster) InRange(start, end int) []Member {
	var out []Member
	for _, m := range c.Members {
		if m.Ordinal >= start && m.Ordinal <= end {
			out = append(out, m)
		}
	}
	return out
}

// Clusters groups by base name and keeps only the clusters with at least
// two members. Clusters are ordered by base name; members by ordinal, then
// by name and ID so the order never depends on the input order.
func Clusters(groups []ports.Group) []Cluster {
	byBase := make(map[string][]Member)
	for _, g := range groups {
		base := BaseName(g.Name)
		byBase[base] = append(byBase[base], Member{Group: g, Ordinal: ExtractOrdinal(g.Name)})
	}

	var clusters []Cluster
	for base, members := range byBase {
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if a.Ordinal != b.Ordinal {
				return a.Ordinal < b.Ordinal
			}
			if a.Group.Name != b.Group.Name {
				return a.Group.Name < b.Group.Name
			}
			return a.Group.ID < b.Group.ID
		})
		clusters = append(clusters, Cluster{Base: base, Members: members})
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Base < clusters[j].Base })
	return clusters
}
