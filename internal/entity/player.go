package entity

// IsShape reports whether mark is one of the two player shapes.
func IsShape(mark string) bool {
	return mark == PlayerX || mark == PlayerO
}

// ToggleMark - returns the shape that moves after currentMark.
func ToggleMark(currentMark string) string {
	if currentMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
