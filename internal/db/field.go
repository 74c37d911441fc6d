package db

// Field is an optional update of a nullable column. The zero value leaves the
// column alone; Null clears it; Value sets it.
type Field[T any] struct {
	set   bool
	valid bool
	value T
}

// Value returns a Field that sets the column to v.
func Value[T any](v T) Field[T] {
	return Field[T]{set: true, valid: true, value: v}
}

// Null returns a Field that clears the column.
func Null[T any]() Field[T] {
	return Field[T]{set: true}
}

// IsSet reports whether the caller supplied the field at all.
func (f Field[T]) IsSet() bool { return f.set }

// IsNull reports whether the field clears the column.
func (f Field[T]) IsNull() bool { return f.set && !f.valid }

// Get returns the value and whether it is non-null.
func (f Field[T]) Get() (T, bool) { return f.value, f.valid }
