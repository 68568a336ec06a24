package merging

import "unicode/utf8"

// BuildMergedName keeps the more descriptive of two names: an empty name yields the
// other one, otherwise the longer wins and ties keep the target.
func BuildMergedName(target, source string) string {
	if target == "" {
		return source
	}
	if source == "" {
		return target
	}
	if utf8.RuneCountInString(target) >= utf8.RuneCountInString(source) {
		return target
	}
	return source
}
