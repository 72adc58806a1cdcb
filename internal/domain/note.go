package domain

import (
	"strings"
	"time"
)

// Note is a timestamped markdown update on a task.
type Note struct {
	ID           string
	TaskID       string
	Body         string
	AuthorUserID string
	CreatedAt    time.Time
}

// NoteInput holds values for note creation.
type NoteInput struct {
	ID           string
	TaskID       string
	Body         string
	AuthorUserID string
}

// NewNote constructs a note.
func NewNote(in NoteInput, now time.Time) (Note, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Note{}, ErrInvalidID
	}
	in.TaskID = strings.TrimSpace(in.TaskID)
	if in.TaskID == "" {
		return Note{}, ErrInvalidID
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return Note{}, ErrInvalidBody
	}
	return Note{
		ID:           in.ID,
		TaskID:       in.TaskID,
		Body:         body,
		AuthorUserID: strings.TrimSpace(in.AuthorUserID),
		CreatedAt:    now.UTC(),
	}, nil
}
