package geometry

import (
	"strings"

	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/warnings"
)

// Resolver reconstructs line geometry of ways and relations. Problems in the
// source data never fail resolution; they are reported to the sink and the
// offending reference is skipped.
type Resolver struct {
	store *osm.Store
}

// NewResolver returns a resolver reading from store.
func NewResolver(store *osm.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the geometry of el, or nil (with a warning recorded) when
// no coordinate could be resolved.
func (r *Resolver) Resolve(el *osm.Element, sink *warnings.Sink) *Geometry {
	return FromLines(r.linesOf(el, make(map[int64]bool), sink))
}

// linesOf returns the flat list of lines making up el. path holds the
// relations currently being expanded and guards against reference cycles.
func (r *Resolver) linesOf(el *osm.Element, path map[int64]bool, sink *warnings.Sink) []Line {
	var (
		lines     []Line
		explained bool
	)

	switch el.Type {
	case osm.TypeWay:
		if line := r.wayLine(el, sink); len(line) > 0 {
			lines = []Line{line}
		}
	case osm.TypeRelation:
		lines, explained = r.relationLines(el, path, sink)
	}

	if len(lines) == 0 && !explained {
		sink.Add("no geometry for %s", el)
	}
	return lines
}

func (r *Resolver) wayLine(way *osm.Element, sink *warnings.Sink) Line {
	line := make(Line, 0, len(way.Nodes))
	for _, id := range way.Nodes {
		node, ok := r.store.Lookup(osm.TypeNode, id)
		if !ok {
			sink.Add("can't find node %d in way %d", id, way.ID)
			continue
		}
		line = append(line, Position{node.Lon, node.Lat})
	}
	return line
}

// relationLines expands the street and outer members of rel. The boolean is
// true when an empty result has already been reported. Member problems are
// passed on only when at least one member resolved; otherwise they are folded
// into a single warning for rel.
func (r *Resolver) relationLines(rel *osm.Element, path map[int64]bool, sink *warnings.Sink) ([]Line, bool) {
	members := make([]osm.Member, 0, len(rel.Members))
	for _, m := range rel.Members {
		if m.Role == osm.RoleStreet || m.Role == osm.RoleOuter {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		sink.Add("no %q or %q member in relation %d", osm.RoleStreet, osm.RoleOuter, rel.ID)
		return nil, true
	}

	path[rel.ID] = true
	defer delete(path, rel.ID)

	local := warnings.NewSink()
	var lines []Line
	for _, m := range members {
		switch m.Type {
		case osm.TypeWay:
			way, ok := r.store.Lookup(osm.TypeWay, m.Ref)
			if !ok {
				local.Add("can't find way %d in relation %d", m.Ref, rel.ID)
				continue
			}
			lines = append(lines, r.linesOf(way, path, local)...)
		case osm.TypeRelation:
			if path[m.Ref] {
				local.Add("cycle detected: relation %d is already being expanded (member of relation %d)", m.Ref, rel.ID)
				continue
			}
			sub, ok := r.store.Lookup(osm.TypeRelation, m.Ref)
			if !ok {
				local.Add("can't find relation %d in relation %d", m.Ref, rel.ID)
				continue
			}
			lines = append(lines, r.linesOf(sub, path, local)...)
		}
	}

	if len(lines) > 0 {
		sink.Merge(local)
		return lines, false
	}
	if local.Len() == 0 {
		sink.Add("no resolvable %q or %q member in relation %d", osm.RoleStreet, osm.RoleOuter, rel.ID)
	} else {
		sink.Add("no resolvable %q or %q member in relation %d: %s",
			osm.RoleStreet, osm.RoleOuter, rel.ID, strings.Join(local.Items(), "; "))
	}
	return nil, true
}
