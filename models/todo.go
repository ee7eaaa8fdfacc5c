package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength mirrors the VARCHAR(255) title column of the shared schema.
const MaxTitleLength = 255

var (
	ErrEmptyTitle    = errors.New("title must not be empty")
	ErrTitleTooLong  = errors.New("title is too long")
	ErrTodoNotFound  = errors.New("todo not found")
	ErrInvalidTodoID = errors.New("todo id must be positive")
)

// Todo is a single to-do item. ID is assigned by the store and never changes.
type Todo struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// NormalizeTitle trims surrounding whitespace and validates the result.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

// ValidateID rejects identifiers no store can have assigned.
func ValidateID(id int64) error {
	if id <= 0 {
		return ErrInvalidTodoID
	}
	return nil
}
