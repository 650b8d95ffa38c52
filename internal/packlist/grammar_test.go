package packlist_test

import (
	"errors"
	"testing"

	"autoxdcc/internal/packlist"
)

func textGrammar(t *testing.T) packlist.Grammar {
	t.Helper()
	g, err := packlist.NewGrammar(packlist.GrammarText, packlist.FieldMapping{})
	if err != nil {
		t.Fatalf("NewGrammar(text): %v", err)
	}
	return g
}

func recordGrammar(t *testing.T) packlist.Grammar {
	t.Helper()
	g, err := packlist.NewGrammar(packlist.GrammarRecord, packlist.FieldMapping{
		BotName: "b", PackNumber: "n", Size: "s", Filename: "f",
	})
	if err != nil {
		t.Fatalf("NewGrammar(record): %v", err)
	}
	return g
}

func TestTextGrammarParsesLine(t *testing.T) {
	g := textGrammar(t)
	item, ok := g.Parse("#152  41x [350M] [HorribleSubs] Black Clover - 06 [1080p].mkv")
	if !ok {
		t.Fatal("expected line to parse")
	}
	want := packlist.Item{
		PackNumber: 152,
		Size:       "350M",
		Filename:   "[HorribleSubs] Black Clover - 06 [1080p].mkv",
		ShowName:   "Black Clover",
		Episode:    6,
		Resolution: 1080,
	}
	if item != want {
		t.Fatalf("unexpected item:\n got %+v\nwant %+v", item, want)
	}
}

func TestTextGrammarVariants(t *testing.T) {
	g := textGrammar(t)
	tests := []struct {
		name       string
		line       string
		ok         bool
		show       string
		episode    int
		version    int
		resolution int
		size       string
	}{
		{name: "bracketed version", line: "#3 1x [1.2G] [Group] Show Name - 112 [v2] [720p].mkv", ok: true, show: "Show Name", episode: 112, version: 2, resolution: 720, size: "1.2G"},
		{name: "glued version", line: "#4 1x [ 90M] [Group] Show - 07v3 [480p].mp4", ok: true, show: "Show", episode: 7, version: 3, resolution: 480, size: "90M"},
		{name: "round tags", line: "#5 1x [200M] [Group] Show - 01 (1080p)(ABCD1234).mkv", ok: true, show: "Show", episode: 1, resolution: 1080, size: "200M"},
		{name: "first resolution wins", line: "#6 1x [200M] [Group] Show - 01 [720p][1080p].mkv", ok: true, show: "Show", episode: 1, resolution: 720, size: "200M"},
		{name: "spaced tags", line: "#7 1x [200M] [Group] Show - 02 [HEVC] [1080p].mkv", ok: true, show: "Show", episode: 2, resolution: 1080, size: "200M"},
		{name: "dash in show", line: "#8 1x [200M] [Group] Show - Part Two - 05 [1080p].mkv", ok: true, show: "Show - Part Two", episode: 5, resolution: 1080, size: "200M"},
		{name: "no resolution", line: "#9 1x [200M] [Group] Show - 02 [HEVC].mkv"},
		{name: "bad size", line: "#10 1x [2000M] [Group] Show - 02 [1080p].mkv"},
		{name: "uppercase extension", line: "#11 1x [200M] [Group] Show - 02 [1080p].MKV"},
		{name: "comment", line: "** 4 packs ** 1 of 2 slots open"},
		{name: "blank", line: "   "},
		{name: "single digit episode", line: "#12 1x [200M] [Group] Show - 2 [1080p].mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := g.Parse(tt.line)
			if ok != tt.ok {
				t.Fatalf("Parse ok=%v, want %v (item %+v)", ok, tt.ok, item)
			}
			if !ok {
				return
			}
			if item.ShowName != tt.show || item.Episode != tt.episode || item.Version != tt.version ||
				item.Resolution != tt.resolution || item.Size != tt.size {
				t.Fatalf("unexpected item %+v", item)
			}
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	g := textGrammar(t)
	items := []packlist.Item{
		packlist.NewItem(1, "350M", "G", "Foo", 6, 0, 1080, "mkv"),
		packlist.NewItem(22, "1.4G", "Some Group", "Bar Baz", 12, 2, 720, ".mp4"),
		packlist.NewItem(333, "50M", "G", "Qux - Second Season", 101, 0, 480, "avi"),
		packlist.NewItem(4444, "999M", "G", "Long Runner", 1021, 9, 2160, "mkv"),
	}
	for _, item := range items {
		line := packlist.Render(item)
		parsed, ok := g.Parse(line)
		if !ok {
			t.Fatalf("rendered line did not parse: %q", line)
		}
		if parsed != item {
			t.Fatalf("round trip mismatch for %q:\n got %+v\nwant %+v", line, parsed, item)
		}
	}
}

func TestMissingResolutionRejected(t *testing.T) {
	g := textGrammar(t)
	for _, tags := range []string{"[HEVC]", "[10bit][AAC]", "(x265)", "[1080]", "[p1080]"} {
		line := "#1 1x [100M] [G] Foo - 06 " + tags + ".mkv"
		if item, ok := g.Parse(line); ok {
			t.Fatalf("expected %q to be rejected, got %+v", line, item)
		}
	}
}

func TestRecordGrammarParsesObjectLiteral(t *testing.T) {
	g := recordGrammar(t)
	line := `p.k[12] = {b:"Ginpachi-Sensei", n:1082, s:350, f:"[HorribleSubs] Foo - 06v2 [1080p].mkv"};`
	item, ok := g.Parse(line)
	if !ok {
		t.Fatal("expected record to parse")
	}
	want := packlist.Item{
		PackNumber: 1082,
		Size:       "350",
		Filename:   "[HorribleSubs] Foo - 06v2 [1080p].mkv",
		ShowName:   "Foo",
		Episode:    6,
		Version:    2,
		Resolution: 1080,
		BotName:    "Ginpachi-Sensei",
	}
	if item != want {
		t.Fatalf("unexpected item:\n got %+v\nwant %+v", item, want)
	}
}

func TestRecordGrammarEdgeCases(t *testing.T) {
	g := recordGrammar(t)
	tests := []struct {
		name string
		line string
		ok   bool
		pack int
	}{
		{name: "quoted keys", line: `{"b":"Bot","n":"7","s":"1.2G","f":"[G] Foo - 07 [720p].mkv"}`, ok: true, pack: 7},
		{name: "colon inside value", line: `{b:"Bot", n:8, s:"1G", f:"[G] Foo: Bar, x: y - 08 [720p].mkv"}`, ok: true, pack: 8},
		{name: "multi letter keys", line: `{ b : "Bot" , n : 9 , s : "1G" , f : "[G] Foo - 09 [720p].mkv" }`, ok: true, pack: 9},
		{name: "no object", line: `var packs = [];`},
		{name: "broken json", line: `{b:"Bot", n:}`},
		{name: "no resolution", line: `{b:"Bot", n:10, s:"1G", f:"[G] Foo - 10 [HEVC].mkv"}`},
		{name: "fractional pack", line: `{b:"Bot", n:1.5, s:"1G", f:"[G] Foo - 10 [720p].mkv"}`},
		{name: "missing filename", line: `{b:"Bot", n:11, s:"1G"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := g.Parse(tt.line)
			if ok != tt.ok {
				t.Fatalf("Parse ok=%v, want %v (item %+v)", ok, tt.ok, item)
			}
			if ok && item.PackNumber != tt.pack {
				t.Fatalf("pack = %d, want %d", item.PackNumber, tt.pack)
			}
		})
	}
}

func TestRecordGrammarRequiresCompleteMapping(t *testing.T) {
	_, err := packlist.NewGrammar(packlist.GrammarRecord, packlist.FieldMapping{BotName: "b", PackNumber: "n", Size: "s"})
	if !errors.Is(err, packlist.ErrIncompleteMapping) {
		t.Fatalf("expected ErrIncompleteMapping, got %v", err)
	}
}

func TestParseAllSkipsRejectedLines(t *testing.T) {
	g := textGrammar(t)
	lines := []string{
		"** XDCC LIST **",
		"#1 1x [100M] [G] Foo - 01 [1080p].mkv",
		"",
		"#2 1x [100M] [G] Foo - 02 [HEVC].mkv",
		"#3 1x [100M] [G] Foo - 03 [1080p].mkv",
	}
	items := g.ParseAll(lines)
	if len(items) != 2 || items[0].PackNumber != 1 || items[1].PackNumber != 3 {
		t.Fatalf("unexpected items: %+v", items)
	}
}
