package entity

import "fmt"

// SourceError represents a failure of a single configured source during a refresh pass.
type SourceError struct {
	Label    string `json:"label"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// String renders the error the way it is shown to the user: "<label> <category>: <message>".
func (e SourceError) String() string {
	return fmt.Sprintf("%s %s: %s", e.Label, e.Category, e.Message)
}
