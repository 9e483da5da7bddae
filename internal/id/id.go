package id

import "github.com/google/uuid"

// New returns a random job id. uuid.NewRandom only fails when the system
// entropy source does, in which case a time-ordered v7 id is used instead.
func New() string {
	u, err := uuid.NewRandom()
	if err != nil {
		return uuid.Must(uuid.NewV7()).String()
	}
	return u.String()
}

// Valid reports whether s looks like an id produced by New.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}
