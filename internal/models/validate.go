package models

import "strings"

// ValidateLevelNumber checks that a floor number is not already taken
// within the tower. Pure check, no I/O.
func ValidateLevelNumber(tower *Tower, number int) error {
	for _, l := range tower.Levels {
		if l.Number == number {
			return &ValidationError{
				Field:   "number",
				Message: "level number already exists in tower " + tower.Label,
			}
		}
	}
	return nil
}

// ValidateDepartmentLabel checks that a department label is non-empty and
// unique within its level.
func ValidateDepartmentLabel(level *Level, label string) error {
	if strings.TrimSpace(label) == "" {
		return &ValidationError{Field: "label", Message: "department label must not be empty"}
	}
	for _, d := range level.Departments {
		if d.Label == label {
			return &ValidationError{
				Field:   "label",
				Message: "department label already exists on this level",
			}
		}
	}
	return nil
}
