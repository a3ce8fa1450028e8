package http

import (
	"strconv"
	"strings"

	"browser-http/application/util/rule"

	"github.com/pkg/errors"
)

// [Major, Minor]
type Version [2]uint

var (
	Version10 = Version{1, 0}
	Version11 = Version{1, 1}
	Version20 = Version{2, 0}
)

// ParseVersion parses http version text(e.g. "HTTP/1.1") into [Version].
// Host primitives that only report a major version (e.g. "HTTP/2") are accepted as well.
func ParseVersion(s string) (Version, error) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(s, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", s)
	}

	first, second, found := strings.Cut(s[len(prefix):], ".")
	if !found {
		second = "0"
	}

	major, err1 := strconv.ParseUint(first, 10, 64)
	minor, err2 := strconv.ParseUint(second, 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", s)
	}

	return Version{uint(major), uint(minor)}, nil
}

func (ver Version) String() string {
	return "HTTP/" + strconv.FormatUint(uint64(ver[0]), 10) + "." + strconv.FormatUint(uint64(ver[1]), 10)
}

func (ver Version) IsZero() bool { return ver == Version{} }

type Field struct{ Name, Value string }

func ParseField(fieldLine string) (Field, error) {
	name, value, found := strings.Cut(fieldLine, ":")
	if !found {
		return Field{}, errors.Errorf("colon seperator not found on header: %q", fieldLine)
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	for _, c := range rule.OWS {
		if strings.HasSuffix(name, string(c)) {
			return Field{}, errors.New("field name has trailing whitespace")
		}
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = strings.Trim(value, string(rule.OWS))

	return Field{Name: name, Value: value}, nil
}

// ParseFieldBlock parses a block of field lines, as handed out by the host's
// request primitive after completion. Lines are CRLF separated, a bare LF is tolerated.
// Empty lines are skipped.
func ParseFieldBlock(block string) ([]Field, error) {
	lines := strings.Split(block, "\n")

	fields := make([]Field, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, string(rule.CR))
		if line == "" {
			continue
		}

		field, err := ParseField(line)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing field line %q", line)
		}
		fields = append(fields, field)
	}

	return fields, nil
}

func (f Field) String() string {
	return f.Name + ": " + f.Value
}
