// Package media defines the sentence model shared with the external CRUD
// layer and the Library seam the pipeline uses to read inputs and persist
// generation outcomes.
package media
