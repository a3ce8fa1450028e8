package rule

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.2-2
func IsValidToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if IsAlpha(c) || IsDigit(c) {
			continue
		}

		switch c {
		case '!', '#', '$', '%', '&', '\'', '*', '+',
			'-', '.', '^', '_', '`', '|', '~':
			continue
		}

		return false
	}

	return true
}

// IsValidFieldValue reports whether s can be sent as a field value as is.
// CR, LF and NUL are never allowed, as they would split the field line.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.5-5
func IsValidFieldValue(s string) bool {
	for idx := 0; idx < len(s); idx++ {
		switch s[idx] {
		case CR, LF, NUL:
			return false
		}
	}
	return true
}
