package api

import "github.com/google/uuid"

// NewID returns a fresh unique entity ID. Callers that may retry an
// AddNode / ConnectNodes / CreateGroup after an ambiguous response
// should generate the ID up front and put it in the request, so the
// retry is recognized as a duplicate instead of double-inserting.
func NewID() string {
	return uuid.NewString()
}
