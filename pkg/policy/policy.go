// Package policy implements the named filter policies selecting which
// catalog entries a run considers for installation. Policies are pure
// predicates over single entries; applying one preserves catalog order
// and never invents or duplicates entries.
package policy

import (
	"errors"
	"time"

	"github.com/stkaddons/addonmgr/pkg/catalog"
)

// ErrInvalidPolicy is reported for a policy name outside the closed set
// returned by Names. It is fatal at argument-validation time.
var ErrInvalidPolicy = errors.New("invalid filter policy")

// Policy names accepted by Apply.
const (
	// Default selects tracks, arenas and the curated featured karts.
	Default = "default"
	// All selects every approved entry.
	All = "all"
	// TracksOnly selects tracks and arenas.
	TracksOnly = "tracks-only"
	// HighRated selects entries rated at least MinHighRating.
	HighRated = "high-rated"
	// Recent selects entries updated within RecentWindow.
	Recent = "recent"
)

const (
	// MinHighRating is the rating floor of the high-rated policy.
	MinHighRating = 2.8
	// RecentWindow is the lookback of the recent policy.
	RecentWindow = 365 * 24 * time.Hour
)

// Names returns the closed set of valid policy names.
func Names() []string {
	return []string{Default, All, TracksOnly, HighRated, Recent}
}

// Valid reports whether name is a known policy.
func Valid(name string) bool {
	switch name {
	case Default, All, TracksOnly, HighRated, Recent:
		return true
	}
	return false
}

// DecisionFunc receives the per-entry verdict of a policy run. It is a
// reporting side channel only; selection results do not depend on it.
type DecisionFunc func(e catalog.Entry, accepted bool, reason string)

// Engine evaluates filter policies. The zero value is usable and
// behaves like a run with no featured karts and wall-clock time.
type Engine struct {
	// FeaturedKarts is the curated kart ID list admitted by the
	// default policy alongside tracks and arenas.
	FeaturedKarts []string
	// Now substitutes the time source of the recent policy. Defaults
	// to time.Now.
	Now func() time.Time
	// Decision, when set, receives every accept/reject verdict.
	Decision DecisionFunc
}

// Apply filters entries with the named policy. Unknown names fail with
// ErrInvalidPolicy before any entry is evaluated.
func (g *Engine) Apply(name string, entries []catalog.Entry) ([]catalog.Entry, error) {
	if !Valid(name) {
		return nil, ErrInvalidPolicy
	}
	selected := make([]catalog.Entry, 0, len(entries))
	for _, e := range entries {
		accepted, reason := g.evaluate(name, e)
		if g.Decision != nil {
			g.Decision(e, accepted, reason)
		}
		if accepted {
			selected = append(selected, e)
		}
	}
	return selected, nil
}

func (g *Engine) evaluate(name string, e catalog.Entry) (bool, string) {
	switch name {
	case All:
		return true, "all entries accepted"
	case TracksOnly:
		if e.Category == catalog.CategoryKart {
			return false, "karts excluded"
		}
		return true, "track or arena"
	case HighRated:
		if e.Rating >= MinHighRating {
			return true, "rating above floor"
		}
		return false, "rating below floor"
	case Recent:
		now := time.Now()
		if g.Now != nil {
			now = g.Now()
		}
		if e.Updated.IsZero() || now.Sub(e.Updated) >= RecentWindow {
			return false, "not updated within window"
		}
		return true, "updated within window"
	case Default:
		if e.Category != catalog.CategoryKart {
			return true, "track or arena"
		}
		if g.featured(e.ID) {
			return true, "featured kart"
		}
		return false, "kart not in featured list"
	}
	// unreachable, Apply validates the name first
	return false, "unknown policy"
}

func (g *Engine) featured(id string) bool {
	for _, k := range g.FeaturedKarts {
		if k == id {
			return true
		}
	}
	return false
}
