package parser

import (
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Field grammar
// ---------------------------------------------------------------------------
//
// Every field of a log or metrics line is described by a small scanner
// combinator instead of one large pattern. A scanner consumes a prefix of its
// input and reports the captured value; an extractor finds where in a line a
// scanner should run.

// scanner consumes a prefix of s and returns the captured value.
type scanner func(s string) (value string, rest string, ok bool)

// extractor pulls one field out of a whole line.
type extractor func(line string) (string, bool)

// run matches one or more runes accepted by accept.
func run(accept func(r rune) bool) scanner {
	return func(s string) (string, string, bool) {
		end := len(s)
		for i, r := range s {
			if !accept(r) {
				end = i
				break
			}
		}
		if end == 0 {
			return "", s, false
		}
		return s[:end], s[end:], true
	}
}

// then requires the literal lit right after sc, and drops it from the value.
func then(sc scanner, lit string) scanner {
	return func(s string) (string, string, bool) {
		v, rest, ok := sc(s)
		if !ok || !strings.HasPrefix(rest, lit) {
			return "", s, false
		}
		return v, rest[len(lit):], true
	}
}

// anchored runs sc only at the very start of the line, after the literal lit.
func anchored(lit string, sc scanner) extractor {
	return func(line string) (string, bool) {
		if !strings.HasPrefix(line, lit) {
			return "", false
		}
		v, _, ok := sc(line[len(lit):])
		return v, ok
	}
}

// after runs sc right behind each occurrence of marker, left to right, and
// returns the first value that scans.
func after(marker string, sc scanner) extractor {
	return func(line string) (string, bool) {
		for off := 0; off <= len(line); {
			i := strings.Index(line[off:], marker)
			if i < 0 {
				return "", false
			}
			start := off + i + len(marker)
			if v, _, ok := sc(line[start:]); ok {
				return v, true
			}
			off += i + 1
		}
		return "", false
	}
}

func isDigit(r rune) bool    { return r >= '0' && r <= '9' }
func isDecimal(r rune) bool  { return isDigit(r) || r == '.' }
func isWord(r rune) bool     { return r == '_' || isDigit(r) || isASCIILetter(r) }
func isNonSpace(r rune) bool { return !unicode.IsSpace(r) }

func isASCIILetter(r rune) bool { return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' }

var (
	digits    = run(isDigit)
	decimal   = run(isDecimal)
	word      = run(isWord)
	nonSpace  = run(isNonSpace)
	inBracket = run(func(r rune) bool { return r != ']' })
)

// Field extractors shared by the log and metrics grammars.
var (
	fieldTimestamp = anchored("[", then(inBracket, "]"))
	fieldLevel     = after("] ", then(word, " -"))
	fieldUser      = after("User: ", nonSpace)
	fieldIP        = after("IP: ", nonSpace)
	fieldStatus    = after("Status: ", digits)
	fieldLatency   = after("Latency: ", then(digits, "ms"))

	fieldCPU         = after("CPU: ", then(decimal, "%"))
	fieldMemory      = after("Memory: ", then(decimal, "%"))
	fieldMemoryUsed  = after("Memory Used: ", then(digits, "MB"))
	fieldMemoryTotal = after("Memory Total: ", then(digits, "MB"))
)

// fieldRequest finds the first "<METHOD> /<path>" pair: the word characters
// directly before a space and a slash, and the non-space run from the slash.
func fieldRequest(line string) (method, path string, ok bool) {
	for off := 0; off < len(line); {
		i := strings.Index(line[off:], " /")
		if i < 0 {
			break
		}
		sep := off + i
		start := sep
		for start > 0 && isWord(rune(line[start-1])) {
			start--
		}
		if start < sep {
			path, _, _ = nonSpace(line[sep+1:])
			return line[start:sep], path, true
		}
		off = sep + 1
	}
	return "", "", false
}

// fieldMessage strips the "Message:" label from a paired message line.
func fieldMessage(line string) string {
	m := strings.TrimSpace(line)
	m = strings.TrimPrefix(m, "Message:")
	return strings.TrimSpace(m)
}
