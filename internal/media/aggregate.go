// Package media turns the flat one-row-per-artifact result of the
// message×media join into the nested view consumers expect.
package media

import "github.com/adventuretrack/atsite/internal/models"

// Aggregate nests flat media rows by category and config name in a
// single pass.
//
// Rows without a config name are dropped: they have no place in the
// nested view (would be an ambiguous multiplicity under one category).
// A duplicate (category, config name) pair is tolerated with
// last-write-wins; duplicates indicate a data problem upstream, not a
// condition this transform can resolve, and callers must not rely on
// which row survives.
//
// With redact set, each row is redacted before insertion, using the
// same excluded-field set as the store's redacted reads.
func Aggregate(items []models.Media, redact bool) models.MediaGroups {
	if len(items) == 0 {
		return nil
	}
	groups := make(models.MediaGroups)
	for _, md := range items {
		if md.ConfigName == nil {
			continue
		}
		if redact {
			md.Redact()
		}
		byConf := groups[md.Category]
		if byConf == nil {
			byConf = make(map[string]models.Media)
			groups[md.Category] = byConf
		}
		byConf[*md.ConfigName] = md
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}
