// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gesture maps classifier labels to the directional actions the
// game consumes.
package gesture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Action is the vocabulary forwarded to the consumer.
type Action int

const (
	None Action = iota
	Left
	Right
)

func (a Action) String() string {
	switch a {
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	}
	return "NONE"
}

// MarshalText encodes the action as LEFT, RIGHT or NONE.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case "LEFT":
		*a = Left
	case "RIGHT":
		*a = Right
	case "NONE":
		*a = None
	default:
		return fmt.Errorf("gesture: unknown action %q", text)
	}
	return nil
}

// Mapper looks a label up in two disjoint sets. It is read-only after
// construction.
type Mapper struct {
	left  map[string]struct{}
	right map[string]struct{}
}

// NewMapper builds a Mapper. A label may not be in both sets.
func NewMapper(left, right []string) (*Mapper, error) {
	m := &Mapper{
		left:  make(map[string]struct{}, len(left)),
		right: make(map[string]struct{}, len(right)),
	}
	for _, l := range left {
		m.left[l] = struct{}{}
	}
	for _, r := range right {
		if _, dup := m.left[r]; dup {
			return nil, fmt.Errorf("gesture: label %q is mapped to both LEFT and RIGHT", r)
		}
		m.right[r] = struct{}{}
	}
	return m, nil
}

// Map returns Left, Right, or None for an unknown label.
func (m *Mapper) Map(label string) Action {
	if _, ok := m.left[label]; ok {
		return Left
	}
	if _, ok := m.right[label]; ok {
		return Right
	}
	return None
}

// Labels returns the sorted label sets.
func (m *Mapper) Labels() (left, right []string) {
	return sortedKeys(m.left), sortedKeys(m.right)
}

func (m *Mapper) String() string {
	l, r := m.Labels()
	return fmt.Sprintf("LEFT=[%s] RIGHT=[%s]", strings.Join(l, ","), strings.Join(r, ","))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MapFile is the TOML layout of a gesture map file:
//
//	[gestures]
//	left = ["pinchL"]
//	right = ["pinchR"]
type MapFile struct {
	Gestures struct {
		Left  []string `toml:"left"`
		Right []string `toml:"right"`
	} `toml:"gestures"`
}

// LoadMapFile reads label sets from a TOML file.
func LoadMapFile(path string) (*Mapper, error) {
	var f MapFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("gesture: decode map file: %w", err)
	}
	return NewMapper(f.Gestures.Left, f.Gestures.Right)
}
