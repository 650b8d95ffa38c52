package packlist

import (
	"regexp"
	"strconv"
	"strings"
)

// filenamePattern captures, in order: the whole filename, the show name, the
// episode number, an optional version tag and the tag block.
const filenamePattern = `(` +
	`\[.+\] ` + // release group
	`(.+) - ` + // show name
	`([0-9]{2,4})\s*` + // episode number
	`(?:\[?(v[0-9])\]?)?\s*` + // optional version
	`(\(.+\)|\[.+\])` + // tags in round or square brackets
	`.*\.[a-z]+` + // trailing text and extension
	`)`

var (
	filenameRE   = regexp.MustCompile(`^` + filenamePattern + `$`)
	resolutionRE = regexp.MustCompile(`^[0-9]{3,4}p$`)
	squareTagRE  = regexp.MustCompile(`\[([^\[\]]*)\]`)
	roundTagRE   = regexp.MustCompile(`\(([^()]*)\)`)
)

type filenameParts struct {
	filename   string
	show       string
	episode    int
	version    int
	resolution int
}

// matchFilename applies the shared filename grammar to the groups captured
// by a line grammar. groups must hold filename, show, episode, version, tags.
func matchFilename(groups []string) (filenameParts, bool) {
	if len(groups) != 5 {
		return filenameParts{}, false
	}
	episode, err := strconv.Atoi(groups[2])
	if err != nil {
		return filenameParts{}, false
	}
	version := 0
	if groups[3] != "" {
		version, err = strconv.Atoi(strings.TrimPrefix(groups[3], "v"))
		if err != nil {
			return filenameParts{}, false
		}
	}
	resolution, ok := resolutionFromTags(groups[4])
	if !ok {
		return filenameParts{}, false
	}
	return filenameParts{
		filename:   groups[0],
		show:       groups[1],
		episode:    episode,
		version:    version,
		resolution: resolution,
	}, true
}

// resolutionFromTags returns the first tag of the form 1080p.
func resolutionFromTags(block string) (int, bool) {
	tagRE := squareTagRE
	if strings.HasPrefix(block, "(") {
		tagRE = roundTagRE
	}
	for _, match := range tagRE.FindAllStringSubmatch(block, -1) {
		tag := strings.TrimSpace(match[1])
		if !resolutionRE.MatchString(tag) {
			continue
		}
		res, err := strconv.Atoi(strings.TrimSuffix(tag, "p"))
		if err != nil {
			continue
		}
		return res, true
	}
	return 0, false
}

// episodeVersionRE matches the episode number and any version tag glued to it.
var episodeVersionRE = regexp.MustCompile(` - ([0-9]{2,4})(?:\s*\[?v[0-9]+\]?)?`)

// normalizeRelease strips version tags and folds underscores into spaces so
// that two names for the same release compare equal.
func normalizeRelease(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "_", " ")
	return episodeVersionRE.ReplaceAllString(name, " - $1")
}

// SameRelease reports whether a and b name the same release, ignoring a
// version tag inserted or removed after the episode number and spaces that a
// client rewrote as underscores.
func SameRelease(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return normalizeRelease(a) == normalizeRelease(b)
}
