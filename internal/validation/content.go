package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxPostLength    = 10000
	MaxCommentLength = 10000
	MaxBioLength     = 500
)

// ValidatePostContent rejects blank or oversized post bodies.
func ValidatePostContent(content string) error {
	return validateText("post content", content, MaxPostLength)
}

// ValidateCommentContent rejects blank or oversized comments.
func ValidateCommentContent(content string) error {
	return validateText("comment content", content, MaxCommentLength)
}

func validateText(field, content string, max int) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(content) > max {
		return fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return nil
}
