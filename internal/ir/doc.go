// Package ir provides the value and metadata types shared by every layer of
// the entity repository.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - EntityType values are immutable once registered
//   - Canonical JSON (sorted keys, NFC strings) is the only encoding used
//     for identity keys and plan fingerprints
package ir
