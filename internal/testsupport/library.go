package testsupport

import "reelsmith/internal/media"

// MemoryLibrary aliases the in-memory library tests populate directly.
type MemoryLibrary = media.MemoryLibrary

// NewMemoryLibrary creates an empty in-memory sentence library.
func NewMemoryLibrary() *media.MemoryLibrary {
	return media.NewMemoryLibrary()
}
