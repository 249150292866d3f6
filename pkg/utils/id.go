package utils

import "github.com/google/uuid"

func NewID() string { return uuid.NewString() }

// ValidID 仅接受标准 UUID 文本
func ValidID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
