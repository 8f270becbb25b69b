package logic

import (
	"math"
	"strings"
)

// Token positions in a machine status line, e.g. "C1.06,116,124,093,0840,1,0".
const (
	fieldCurrentSteam = 1
	fieldTargetSteam  = 2
	fieldHX           = 3
	fieldHeating      = 5
)

// ParseLine decodes one comma separated telemetry record.
// Empty tokens are skipped, so ",," separates the same two fields as ",".
// Positions 0, 4 and anything past 5 are ignored. Tokens that do not parse
// yield 0; tokens that are missing leave the field nil. Nothing is carried
// over between lines.
func ParseLine(line string) MachineReading {
	var r MachineReading

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return r
	}

	for i, tok := range strings.FieldsFunc(line, isComma) {
		switch i {
		case fieldCurrentSteam:
			v := atoi(tok)
			r.CurrentSteamTemp = &v
		case fieldTargetSteam:
			v := atoi(tok)
			r.TargetSteamTemp = &v
		case fieldHX:
			v := atoi(tok)
			r.HXTemp = &v
		case fieldHeating:
			on := atoi(tok) != 0
			r.HeatingOn = &on
		}
	}
	return r
}

func isComma(r rune) bool { return r == ',' }

// atoi parses leading whitespace, an optional sign and leading digits,
// returning 0 when there are none. The magnitude saturates at MaxInt32.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		d := int(c - '0')
		if n > (math.MaxInt32-d)/10 {
			n = math.MaxInt32
			break
		}
		n = n*10 + d
	}
	if neg {
		return -n
	}
	return n
}
