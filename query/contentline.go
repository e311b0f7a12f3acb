package query

import (
	"strings"

	"github.com/redical/redical/redicalerr"
)

// line is one parsed content line: NAME[;PARAM=VALUE]*:VALUE, the wire shape
// used for every command argument that isn't a full VEVENT.
type line struct {
	name   string
	params map[string]string
	value  string
}

// parseLines splits raw query/WHERE content into its content lines, each in
// turn split into name/params/value. Blank lines are skipped.
func parseLines(raw string) ([]line, *redicalerr.Error) {
	var out []line
	for i, rawLine := range splitLines(raw) {
		if strings.TrimSpace(rawLine) == "" {
			continue
		}
		l, err := parseLine(rawLine)
		if err != nil {
			return nil, err.AtOffset(i)
		}
		out = append(out, l)
	}
	return out, nil
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	return strings.Split(raw, "\n")
}

func parseLine(raw string) (line, *redicalerr.Error) {
	colon := strings.IndexByte(raw, ':')
	if colon < 0 {
		return line{}, redicalerr.New(redicalerr.Parse, "malformed content line %q: missing ':'", raw)
	}
	head, value := raw[:colon], raw[colon+1:]

	parts := strings.Split(head, ";")
	name := strings.ToUpper(parts[0])
	params := make(map[string]string, len(parts)-1)
	for _, p := range parts[1:] {
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			return line{}, redicalerr.New(redicalerr.Parse, "malformed parameter %q in line %q", p, raw)
		}
		params[strings.ToUpper(p[:eq])] = p[eq+1:]
	}
	return line{name: name, params: params, value: value}, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
