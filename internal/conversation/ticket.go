package conversation

import "regexp"

// ticketPattern matches exactly five digits, optionally prefixed with '#',
// that are not part of a longer run of digits.
var ticketPattern = regexp.MustCompile(`(?:^|[^0-9])#?([0-9]{5})(?:[^0-9]|$)`)

// ExtractTicket returns the first ticket id found in text, digits only.
func ExtractTicket(text string) (string, bool) {
	match := ticketPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return "", false
	}
	return match[1], true
}

// HasTicket reports whether text contains a ticket id.
func HasTicket(text string) bool {
	_, ok := ExtractTicket(text)
	return ok
}
