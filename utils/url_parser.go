package utils

import (
	"net/url"
	"strings"
)

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func unescapeUrl(s string) (string, error) {
	n := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			notValid := i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2])
			if notValid {
				i++
			} else {
				n++
				i += 3
			}
		default:
			i++
		}
	}
	t := make([]byte, len(s)-2*n)
	j := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			notValid := i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2])
			if notValid {
				t[j] = s[i]
				j++
				i++
			} else {
				t[j] = unhex(s[i+1])<<4 | unhex(s[i+2])
				j++
				i += 3
			}
		default:
			t[j] = s[i]
			j++
			i++
		}
	}
	return string(t), nil
}

// QueryParam is one key/value pair of a request, in request order.
type QueryParam struct {
	Name  string
	Value string
}

// QueryParams is an ordered request parameter list.
type QueryParams []QueryParam

// Get returns the first value whose key matches name, ignoring case.
func (q QueryParams) Get(name string) (string, bool) {
	for _, p := range q {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Value is Get without the presence flag.
func (q QueryParams) Value(name string) string {
	v, _ := q.Get(name)
	return v
}

// ParseQuery splits a raw query string into its parameters, keeping the
// original key spelling and order. An escaped "\&" does not separate
// parameters. SUBSET and RANGESUBSET values tolerate malformed percent
// escapes since their grammar uses characters clients often leave raw.
func ParseQuery(query string) (QueryParams, error) {
	var params QueryParams
	var err error
	for query != "" {
		key := query
		iSep := -1
		for i := 0; i < len(key); i++ {
			if key[i] == '&' {
				if i > 0 && key[i-1] == '\\' {
					continue
				}
				iSep = i
				break
			}
		}
		if iSep >= 0 {
			key, query = key[:iSep], key[iSep+1:]
		} else {
			query = ""
		}
		if key == "" {
			continue
		}
		value := ""
		if i := strings.Index(key, "="); i >= 0 {
			key, value = key[:i], key[i+1:]
			value = strings.Replace(value, "\\&", "&", -1)
		}
		key, err1 := url.QueryUnescape(key)
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}

		lower := strings.ToLower(key)
		if lower == "rangesubset" || strings.HasPrefix(lower, "subset") {
			value, err1 = unescapeUrl(strings.Replace(value, "+", " ", -1))
		} else {
			value, err1 = url.QueryUnescape(value)
		}
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}

		params = append(params, QueryParam{Name: key, Value: value})
	}
	return params, err
}
