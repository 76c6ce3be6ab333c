package soquetic

import (
	"strings"
)

// Префиксы тегов событий на проводе.
const (
	getPrefix      = "GET:"
	postPrefix     = "POST:"
	realTimePrefix = "RT:"
)

// Event хранит разобранный путь события вида name?k1=v1&k2=v2.
type Event struct {
	Type string
	// Query == nil, если параметров нет.
	Query map[string]string
}

// ParseEvent делит путь по первому '?' на имя и query; query разбирается
// как URLSearchParams: '+' это пробел, %XX декодируется, битые
// последовательности остаются как есть, повторный ключ перезаписывает прежний.
func ParseEvent(path string) Event {
	name, tail, _ := strings.Cut(path, "?")
	return Event{Type: name, Query: decodeQuery(tail)}
}

func decodeQuery(raw string) map[string]string {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}
	q := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		q[unescape(k)] = unescape(v)
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
