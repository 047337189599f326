package utils

import (
	"net/url"
	"strings"
)

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// decodePercent resolves %XX escapes without treating '+' as a space.
// Band maths such as ndvi+nbr would otherwise lose their operators.
func decodePercent(s string) string {
	if !strings.ContainsRune(s, '%') {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := hexVal(s[i+1])
			lo, okLo := hexVal(s[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 3
				continue
			}
		}
		out = append(out, s[i])
		i++
	}
	return string(out)
}

// nextQueryToken splits off the leading key=value pair at the first
// '&' not preceded by a backslash.
func nextQueryToken(query string) (string, string) {
	for i := 0; i < len(query); i++ {
		if query[i] == '&' {
			if i > 0 && query[i-1] == '\\' {
				continue
			}
			return query[:i], query[i+1:]
		}
	}
	return query, ""
}

// ParseQuery splits a raw query string into url.Values. Unlike
// url.ParseQuery it keeps '+' literal inside rangesubset values and
// honours backslash-escaped ampersands in expressions.
func ParseQuery(query string) (url.Values, error) {
	m := make(url.Values)
	var firstErr error
	for query != "" {
		var token string
		token, query = nextQueryToken(query)
		if token == "" {
			continue
		}

		key := token
		value := ""
		if i := strings.Index(token, "="); i >= 0 {
			key, value = token[:i], token[i+1:]
			value = strings.Replace(value, "\\&", "&", -1)
		}

		key, err := url.QueryUnescape(key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		key = strings.ToLower(key)

		if key == "rangesubset" {
			value = decodePercent(value)
		} else {
			value, err = url.QueryUnescape(value)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}

		m[key] = append(m[key], value)
	}
	return m, firstErr
}
