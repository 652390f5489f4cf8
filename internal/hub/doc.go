// Package hub fans job progress events out to interested connections.
// Subjects are opaque strings, typically a project or sentence identifier.
package hub
