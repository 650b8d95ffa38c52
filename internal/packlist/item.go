package packlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Item is one catalogued file. Items are values: they are produced by a
// Grammar and never modified afterwards.
type Item struct {
	PackNumber int
	Size       string
	Filename   string
	ShowName   string
	Episode    int
	// Version is the release revision (v2, v3, ...). Zero means the filename
	// carried no version tag.
	Version    int
	Resolution int
	// BotName is set when the source line names the bot serving the pack.
	BotName string
}

// NewItem composes an item whose filename follows the shared grammar. It is
// mostly useful for rendering synthetic packlists. The grammar carries a single
// version digit, so versions are clamped to 0..9.
func NewItem(pack int, size, group, show string, episode, version, resolution int, ext string) Item {
	version = min(max(version, 0), 9)
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s - %02d", group, show, episode)
	if version > 0 {
		fmt.Fprintf(&b, "v%d", version)
	}
	fmt.Fprintf(&b, " [%dp].%s", resolution, strings.TrimPrefix(ext, "."))
	return Item{
		PackNumber: pack,
		Size:       strings.TrimSpace(size),
		Filename:   b.String(),
		ShowName:   show,
		Episode:    episode,
		Version:    version,
		Resolution: resolution,
	}
}

// Label is a short human description, e.g. "Foo - 06v2 [1080p]".
func (it Item) Label() string {
	label := fmt.Sprintf("%s - %02d", it.ShowName, it.Episode)
	if it.Version > 0 {
		label += "v" + strconv.Itoa(it.Version)
	}
	return fmt.Sprintf("%s [%dp]", label, it.Resolution)
}

// Subscription is a standing request for new episodes of one show.
type Subscription struct {
	ShowName string
	// LastEpisode is nil until the first episode has been fetched.
	LastEpisode  *int
	Resolution   int
	Subdirectory string
	Archived     bool
}

// Eligible reports whether it is new for sub: the episode is strictly past
// the last one seen (or nothing has been seen) and the resolution matches.
func (it Item) Eligible(sub Subscription) bool {
	if it.Resolution != sub.Resolution {
		return false
	}
	return sub.LastEpisode == nil || it.Episode > *sub.LastEpisode
}

// ParseResolution accepts "1080p" or "1080".
func ParseResolution(value string) (int, error) {
	trimmed := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(value)), "p")
	res, err := strconv.Atoi(trimmed)
	if err != nil || res < 100 || res > 9999 {
		return 0, fmt.Errorf("invalid resolution %q", value)
	}
	return res, nil
}

// FormatSize renders a byte count the way packlists do ("350M", "1.4G").
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0M"
	}
	const mb = 1000 * 1000
	if bytes < 1000*mb {
		return fmt.Sprintf("%dM", (bytes+mb/2)/mb)
	}
	return fmt.Sprintf("%.1fG", float64(bytes)/float64(1000*mb))
}

// HumanSize renders a byte count for operators ("1.4 GB").
func HumanSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}
