/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
)

// segmentKind distinguishes a Fixed literal segment (drawn from a fixed
// allowed set) from a Field segment (supplied by the caller).
type segmentKind int

const (
	segFixed segmentKind = iota
	segField
)

// segment is one element of a schema pattern. A Fixed segment's
// allowed set may hold more than one literal, so a single schema can
// describe a base pattern plus its progressive extensions.
type segment struct {
	kind    segmentKind
	allowed []string // for segFixed: the set of literals this segment may take
	name    string   // for segField: the field name, used in error messages
}

func fixed(values ...string) segment {
	return segment{kind: segFixed, allowed: values}
}

func field(name string) segment {
	return segment{kind: segField, name: name}
}

// schema is a base pattern plus a set of alternative extensions, each an
// ordered segment list appended after the base completes.
type schema struct {
	base       []segment
	extensions [][]segment
}

var schemaRegistry = map[string]schema{
	"game_code": {
		base: []segment{fixed("game_code"), field("code")},
	},
	"player_to_game": {
		base: []segment{fixed("player_to_game"), field("player_id")},
	},
	"player_auth": {
		base: []segment{fixed("player_auth"), field("player_id")},
	},
	"player_usernames": {
		base: []segment{fixed("player_usernames"), field("player_id")},
	},
	"game": {
		base: []segment{fixed("game"), field("game_id")},
		extensions: [][]segment{
			{fixed("host_id")},
			{fixed("code")},
			{fixed("players")},
			{fixed("max_players")},
			{fixed("created_at")},
		},
	},
	"team_draft": {
		base: []segment{fixed("team_draft"), field("game_id")},
		extensions: [][]segment{
			{fixed("yapper_id")},
			{fixed("yapper_index")},
			{fixed("max_rounds")},
			{fixed("phase")},
			{fixed("player_points")},
			{fixed("round"), fixed("round", "pool", "competition", "team_size",
				"starting_drafter_id", "current_drafter_id", "player_to_picks")},
		},
	},
}

// builder is the stateful accumulator returned by key(). It consumes the
// base pattern first, then (if the schema has extensions) disambiguates
// among them by progressively filtering on each Fixed value supplied.
type builder struct {
	schemaName string
	sch        schema
	err        error

	values []string

	baseIdx int // index into sch.base, only while consuming the base

	inExtensions  bool
	candidates    [][]segment // extensions still consistent with values seen so far
	candidateIdx  int         // position within the candidate extensions' segment lists, counted from the first extension value
}

// key starts building a key against the named schema.
func key(schemaName string) *builder {
	sch, ok := schemaRegistry[schemaName]
	if !ok {
		return &builder{err: fmt.Errorf("unknown key schema: %s", schemaName)}
	}
	b := &builder{schemaName: schemaName, sch: sch}
	b.autoFillBase()
	return b
}

// autoFillBase consumes leading Fixed segments of the base pattern that
// have exactly one allowed value, filling each in automatically.
func (b *builder) autoFillBase() {
	for b.err == nil && b.baseIdx < len(b.sch.base) {
		seg := b.sch.base[b.baseIdx]
		if seg.kind == segField {
			return
		}
		if len(seg.allowed) != 1 {
			b.err = fmt.Errorf("schema %s: fixed segment with %d allowed values cannot auto-fill", b.schemaName, len(seg.allowed))
			return
		}
		b.values = append(b.values, seg.allowed[0])
		b.baseIdx++
	}
}

// field supplies one user value, either for the next base Field segment
// or to advance/disambiguate an extension.
func (b *builder) field(v string) *builder {
	if b.err != nil {
		return b
	}

	if b.baseIdx < len(b.sch.base) {
		seg := b.sch.base[b.baseIdx]
		if seg.kind != segField {
			b.err = fmt.Errorf("schema %s: expected a field at base position %d but found a fixed segment", b.schemaName, b.baseIdx)
			return b
		}
		b.values = append(b.values, v)
		b.baseIdx++
		b.autoFillBase()
		return b
	}

	if !b.inExtensions {
		if len(b.sch.extensions) == 0 {
			b.err = fmt.Errorf("schema %s: no extensions defined, too many segments provided", b.schemaName)
			return b
		}
		b.inExtensions = true
		b.candidates = b.sch.extensions
		b.candidateIdx = 0
	}

	return b.advanceExtension(v)
}

// advanceExtension consumes one value at the current extension
// position, pruning candidates whose segment at that position
// doesn't match.
func (b *builder) advanceExtension(v string) *builder {
	var next [][]segment
	var fieldValue string
	haveField := false

	for _, ext := range b.candidates {
		if b.candidateIdx >= len(ext) {
			continue
		}
		seg := ext[b.candidateIdx]
		switch seg.kind {
		case segFixed:
			if containsString(seg.allowed, v) {
				next = append(next, ext)
			}
		case segField:
			next = append(next, ext)
			fieldValue = v
			haveField = true
		}
	}

	if len(next) == 0 {
		alts := describeCandidates(b.candidates, b.candidateIdx)
		b.err = fmt.Errorf("schema %s: value %q matches none of the candidate extensions at position %d (alternatives: %s)",
			b.schemaName, v, b.candidateIdx, alts)
		return b
	}

	b.candidates = next
	if haveField {
		b.values = append(b.values, fieldValue)
	} else {
		b.values = append(b.values, v)
	}
	b.candidateIdx++
	return b
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func describeCandidates(candidates [][]segment, at int) string {
	var parts []string
	for _, ext := range candidates {
		if at < len(ext) && ext[at].kind == segFixed {
			parts = append(parts, strings.Join(ext[at].allowed, "|"))
		}
	}
	return strings.Join(parts, ", ")
}

// finish validates completeness and joins the accumulated segments with
// "::". It fails if a required Field is missing or if extension
// ambiguity was never resolved to exactly one candidate.
func (b *builder) finish() (string, error) {
	if b.err != nil {
		return "", b.err
	}

	if b.baseIdx < len(b.sch.base) {
		missing := b.sch.base[b.baseIdx]
		return "", fmt.Errorf("schema %s: missing required field %q", b.schemaName, missing.name)
	}

	if b.inExtensions {
		if len(b.candidates) > 1 {
			alts := describeCandidates(b.candidates, b.candidateIdx)
			return "", fmt.Errorf("schema %s: ambiguous extension unresolved (alternatives: %s)", b.schemaName, alts)
		}
		ext := b.candidates[0]
		for b.candidateIdx < len(ext) {
			seg := ext[b.candidateIdx]
			if seg.kind == segField {
				return "", fmt.Errorf("schema %s: missing required field %q", b.schemaName, seg.name)
			}
			if len(seg.allowed) != 1 {
				return "", fmt.Errorf("schema %s: extension fixed segment at position %d requires an explicit value", b.schemaName, b.candidateIdx)
			}
			b.values = append(b.values, seg.allowed[0])
			b.candidateIdx++
		}
	} else if len(b.sch.extensions) > 0 {
		// Base schema has extensions but none was ever selected: a bare
		// base key is always rejected, since none of the schemas with
		// extensions is used without one.
		return "", fmt.Errorf("schema %s: no extension selected", b.schemaName)
	}

	return strings.Join(b.values, "::"), nil
}
