// Package category defines the closed set of classification outcomes and the
// single normalization point for raw classifier responses.
//
// Categories are compared case-insensitively everywhere, but the canonical
// casing (e.g. "Work") is what gets used for Gmail label names and in reports.
// Snap is the only way raw model output becomes a Category; anything that
// doesn't match the allowed set is rejected by the caller rather than mapped
// to a default.
package category
