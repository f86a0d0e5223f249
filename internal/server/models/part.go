package models

import "time"

// Part is one numbered segment of a story. A part is active while a user
// holds it and it is not yet complete.
type Part struct {
	ID           string     `db:"id"`
	StoryID      string     `db:"story_id"`
	PartNumber   int        `db:"part_number"`
	PartText     string     `db:"part_text"`
	UserID       *string    `db:"user_id"`
	DateStarted  *time.Time `db:"date_started"`
	DateComplete *time.Time `db:"date_complete"`
}

func (p *Part) IsComplete() bool {
	return p.DateComplete != nil
}

// HeldBy reports whether userID holds the part and it is still open.
func (p *Part) HeldBy(userID string) bool {
	return p.UserID != nil && *p.UserID == userID && p.DateComplete == nil
}
