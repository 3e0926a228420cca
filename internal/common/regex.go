package common

import "regexp"

// MatchRegex compiles pattern and matches it against text. Nothing is cached:
// callers that evaluate untrusted rule patterns get a fresh compile each time.
// Returns an error if the pattern is invalid.
func MatchRegex(pattern, text string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}

// ValidateRegex reports whether pattern compiles.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile(pattern)
	return err
}
