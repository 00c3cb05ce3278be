package whisper

// Models is the fixed set of accepted model identifiers, smallest first.
var Models = []string{"tiny", "base", "small", "medium", "large-v2", "large-v3"}

// IsValidModel reports whether id is in the accepted set. Checked before
// any file I/O happens for a request.
func IsValidModel(id string) bool {
	for _, m := range Models {
		if m == id {
			return true
		}
	}
	return false
}
