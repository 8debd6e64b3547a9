package session

import "fmt"

// ValidateName checks that a session name is non-empty and safe to use
// as a directory component.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name is empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("session name too long (max 64): %q", name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return fmt.Errorf("session name contains invalid character %q", r)
		}
	}
	return nil
}
