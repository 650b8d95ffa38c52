package packlist

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	recordSpanRE     = regexp.MustCompile(`(\{.*\})`)
	recordFilenameRE = filenameRE
)

func parseRecord(line string, fields FieldMapping) (Item, bool) {
	span := recordSpanRE.FindString(line)
	if span == "" {
		return Item{}, false
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(quoteBareKeys(span)), &record); err != nil {
		return Item{}, false
	}

	filename, ok := record[fields.Filename].(string)
	if !ok {
		return Item{}, false
	}
	m := recordFilenameRE.FindStringSubmatch(filename)
	if m == nil {
		return Item{}, false
	}
	parts, ok := matchFilename(m[1:6])
	if !ok {
		return Item{}, false
	}
	pack, ok := intField(record[fields.PackNumber])
	if !ok {
		return Item{}, false
	}
	bot, _ := record[fields.BotName].(string)

	return Item{
		PackNumber: pack,
		Size:       strings.TrimSpace(stringField(record[fields.Size])),
		Filename:   parts.filename,
		ShowName:   parts.show,
		Episode:    parts.episode,
		Version:    parts.version,
		Resolution: parts.resolution,
		BotName:    strings.TrimSpace(bot),
	}, true
}

func intField(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func stringField(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// quoteBareKeys rewrites a JavaScript object literal such as
// {b:"Bot", n:12} into JSON by quoting identifier keys. Text inside string
// literals is left untouched.
func quoteBareKeys(src string) string {
	var out strings.Builder
	out.Grow(len(src) + 16)

	expectKey := false
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			out.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				out.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"':
			quote = c
			expectKey = false
			out.WriteByte(c)
		case c == '{' || c == ',':
			expectKey = true
			out.WriteByte(c)
		case expectKey && isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			k := j
			for k < len(src) && (src[k] == ' ' || src[k] == '\t') {
				k++
			}
			if k < len(src) && src[k] == ':' {
				out.WriteByte('"')
				out.WriteString(src[i:j])
				out.WriteByte('"')
			} else {
				out.WriteString(src[i:j])
			}
			i = j - 1
			expectKey = false
		default:
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				expectKey = false
			}
			out.WriteByte(c)
		}
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
