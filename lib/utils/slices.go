package utils

// Splice removes deleteCount elements at start and inserts items in their
// place. A negative start counts from the end. The input slice is not
// modified.
func Splice(slice []string, start, deleteCount int, items ...string) []string {
	if start < 0 {
		start = len(slice) + start
		if start < 0 {
			start = 0
		}
	}
	if start > len(slice) {
		start = len(slice)
	}

	if deleteCount < 0 {
		deleteCount = 0
	}

	end := start + deleteCount
	if end > len(slice) {
		end = len(slice)
	}

	result := make([]string, 0, len(slice)-(end-start)+len(items))
	result = append(result, slice[:start]...)
	result = append(result, items...)
	result = append(result, slice[end:]...)

	return result
}
