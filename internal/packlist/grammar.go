package packlist

import (
	"errors"
	"fmt"
	"strings"
)

// GrammarKind selects the line format of a packlist.
type GrammarKind int

const (
	// GrammarText parses "#<pack> <count>x [<size>] <filename>" lines.
	GrammarText GrammarKind = iota
	// GrammarRecord parses JavaScript-style object literals embedded in a line.
	GrammarRecord
)

func (k GrammarKind) String() string {
	switch k {
	case GrammarText:
		return "text"
	case GrammarRecord:
		return "record"
	default:
		return fmt.Sprintf("grammar(%d)", int(k))
	}
}

// ErrIncompleteMapping is returned when a record grammar lacks one of the
// mandatory field mappings.
var ErrIncompleteMapping = errors.New("packlist: incomplete record field mapping")

// FieldMapping names the record keys holding each semantic field.
type FieldMapping struct {
	BotName    string
	PackNumber string
	Size       string
	Filename   string
}

func (m FieldMapping) missing() []string {
	var out []string
	for _, field := range []struct{ name, key string }{
		{"bot_name", m.BotName},
		{"packnumber", m.PackNumber},
		{"size", m.Size},
		{"filename", m.Filename},
	} {
		if strings.TrimSpace(field.key) == "" {
			out = append(out, field.name)
		}
	}
	return out
}

// Grammar is a resolved line parser. The zero value parses text lines.
type Grammar struct {
	kind   GrammarKind
	fields FieldMapping
}

// NewGrammar validates the mapping for record grammars up front so that a
// misconfigured packlist fails at construction rather than on first use.
func NewGrammar(kind GrammarKind, fields FieldMapping) (Grammar, error) {
	switch kind {
	case GrammarText:
		return Grammar{kind: kind}, nil
	case GrammarRecord:
		if missing := fields.missing(); len(missing) > 0 {
			return Grammar{}, fmt.Errorf("%w: missing %s", ErrIncompleteMapping, strings.Join(missing, ", "))
		}
		return Grammar{kind: kind, fields: fields}, nil
	default:
		return Grammar{}, fmt.Errorf("packlist: unknown grammar %d", int(kind))
	}
}

// Kind reports the grammar variant.
func (g Grammar) Kind() GrammarKind { return g.kind }

// Parse converts one raw line into an Item. Blank lines, comments and lines
// that do not satisfy the grammar (including filenames without a resolution
// tag) are rejected with ok == false.
func (g Grammar) Parse(line string) (Item, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
	if line == "" {
		return Item{}, false
	}
	switch g.kind {
	case GrammarRecord:
		return parseRecord(line, g.fields)
	default:
		return parseText(line)
	}
}

// ParseAll parses every line, dropping rejected ones.
func (g Grammar) ParseAll(lines []string) []Item {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		if item, ok := g.Parse(line); ok {
			items = append(items, item)
		}
	}
	return items
}
