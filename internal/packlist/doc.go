// Package packlist turns raw packlist lines into catalogue items.
//
// A bot publishes its catalogue either as tagged plain text
// ("#12 3x [350M] [Group] Show - 06 [1080p].mkv") or as loosely structured
// JavaScript object literals. Both share one filename grammar from which the
// show name, episode number, optional version tag and resolution are
// recovered. Grammar selection happens once, at construction, through
// NewGrammar; parsing itself is pure and never fails loudly: lines that do
// not match are simply rejected.
//
// The package also owns the eligibility rule that decides whether an item is
// new for a subscription, and SameRelease, the filename comparison used to
// reconcile transfer offers whose names differ from the catalogue by a
// version tag.
package packlist
