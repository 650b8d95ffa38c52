package packlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var textLineRE = regexp.MustCompile(`^#([0-9]+)\s+` + // pack number
	`[0-9]+x ` + // download count
	`\[([ .0-9]{3}[MG])\] ` + // size
	filenamePattern + `$`)

func parseText(line string) (Item, bool) {
	if !strings.HasPrefix(line, "#") {
		return Item{}, false
	}
	m := textLineRE.FindStringSubmatch(line)
	if m == nil {
		return Item{}, false
	}
	pack, err := strconv.Atoi(m[1])
	if err != nil {
		return Item{}, false
	}
	parts, ok := matchFilename(m[3:8])
	if !ok {
		return Item{}, false
	}
	return Item{
		PackNumber: pack,
		Size:       strings.TrimSpace(m[2]),
		Filename:   parts.filename,
		ShowName:   parts.show,
		Episode:    parts.episode,
		Version:    parts.version,
		Resolution: parts.resolution,
	}, true
}

// Render writes item as a text packlist line. The download count is not
// part of an Item and is rendered as zero.
func Render(item Item) string {
	return fmt.Sprintf("#%d 0x [%4s] %s", item.PackNumber, item.Size, item.Filename)
}
