// Package pointer converts between optional values and their nullable
// database representations.
package pointer

// To returns a pointer to a copy of value
func To[T any](value T) *T {
	return &value
}

// OrDefault returns value when set, otherwise a pointer to defaultValue
func OrDefault[T any](value *T, defaultValue T) *T {
	if value != nil {
		return value
	}
	return &defaultValue
}

// IfValid returns a pointer to value only when valid is set, mirroring the
// Valid flag of the sql.Null* types
func IfValid[T any](valid bool, value T) *T {
	if !valid {
		return nil
	}
	return &value
}

// Copy returns a pointer to a fresh copy of *value, or nil
func Copy[T any](value *T) *T {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
