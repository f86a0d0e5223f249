package models

import "time"

// Story groups up to five parts. Locked is set while a writer holds the
// story's newest part; DateComplete is set once part five is complete.
type Story struct {
	ID           string     `db:"id"`
	Title        *string    `db:"title"`
	Locked       bool       `db:"locked"`
	DateCreated  time.Time  `db:"date_created"`
	DateComplete *time.Time `db:"date_complete"`
}

func (s *Story) IsComplete() bool {
	return s.DateComplete != nil
}

// StoryWithParts is a story together with its parts ordered by number.
type StoryWithParts struct {
	Story
	Parts []Part
}
