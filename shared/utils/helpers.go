package utils

// Ternary devuelve ifTrue o ifFalse según la condición.
func Ternary[T any](condition bool, ifTrue, ifFalse T) T {
	if condition {
		return ifTrue
	}
	return ifFalse
}
