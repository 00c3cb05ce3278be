package style

import (
	"strings"
	"testing"
)

func TestParseSpecToleratesBadInput(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Spec
	}{
		{"empty body", "", Spec{}},
		{"not json", "{not json", Spec{}},
		{"not an object", `[1,2,3]`, Spec{}},
		{
			"numeric scalars coerced",
			`{"fontSize": 24, "shadow": 1.5, "color": "#ff0000"}`,
			Spec{FontSize: "24", Shadow: "1.5", Color: "#ff0000"},
		},
		{
			"non-scalar values dropped",
			`{"fontFamily": ["Arial"], "position": "top"}`,
			Spec{Position: "top"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseSpec([]byte(tt.data)); got != tt.want {
				t.Errorf("ParseSpec() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSubtitleOverrideBaseline(t *testing.T) {
	tr := NewTranslator("/fonts")

	got := tr.SubtitleOverride(Spec{})
	want := "Fontsize=16,Outline=1,Shadow=0.5,BorderStyle=1," +
		"PrimaryColour=&HFFFFFF&,OutlineColour=&H000000&,BackColour=&H80000000&," +
		"Alignment=8,Box=1,BoxColour=&H80000000&"
	if got != want {
		t.Errorf("baseline override = %q, want %q", got, want)
	}
}

func TestSubtitleOverrideAppliesFields(t *testing.T) {
	tr := NewTranslator("/fonts")

	got := tr.SubtitleOverride(Spec{
		FontSize: "24",
		Color:    "#FF0000",
		Position: "top",
		Outline:  "2",
	})

	for _, fragment := range []string{
		"Fontsize=24",
		"PrimaryColour=&H000000FF&",
		"Alignment=2",
		"Outline=2",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("override %q missing %q", got, fragment)
		}
	}
}

func TestSubtitleOverrideMalformedFieldsKeepBaseline(t *testing.T) {
	tr := NewTranslator("/fonts")

	baseline := tr.SubtitleOverride(Spec{})
	got := tr.SubtitleOverride(Spec{
		FontSize: "huge",
		Color:    "#12", // too short
		Position: "sideways",
	})
	if got != baseline {
		t.Errorf("malformed fields changed output: %q != %q", got, baseline)
	}
}

func TestBackgroundColour(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"hex keeps baseline alpha", "#000000", "&H80000000&", true},
		{"rgba without alpha keeps baseline alpha", "rgba(0, 0, 0)", "&H80000000&", true},
		{"rgba alpha translated", "rgba(0, 0, 0, 0.5)", "&H7F000000&", true},
		{"rgba opaque", "rgba(255, 0, 0, 1)", "&H000000FF&", true},
		{"channel order reversed", "#112233", "&H80332211&", true},
		{"transparent rejected", "transparent", "", false},
		{"out of range channel", "rgba(300, 0, 0)", "", false},
		{"garbage", "blue", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := backgroundColour(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("backgroundColour(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOverlayArgs(t *testing.T) {
	tr := NewTranslator("/fonts")

	args := tr.OverlayArgs(Spec{
		FontFamily:      "Roboto, sans-serif",
		FontSize:        "20",
		Color:           "#FFFFFF",
		BackgroundColor: "#000000",
		Position:        "middle",
	})

	want := map[string]string{
		"fontfile":  "/fonts/Roboto.ttf",
		"fontsize":  "20",
		"fontcolor": "#FFFFFF",
		"box":       "1",
		"boxcolor":  "#000000@0.7",
		"y":         "(h-text_h)/2",
		"x":         "(w-text_w)/2",
	}
	got := make(map[string]string, len(args))
	for _, a := range args {
		got[a.Key] = a.Value
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("arg %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestOverlayArgsTransparentBackgroundOmitsBox(t *testing.T) {
	tr := NewTranslator("/fonts")

	for _, a := range tr.OverlayArgs(Spec{BackgroundColor: "transparent"}) {
		if a.Key == "box" || a.Key == "boxcolor" {
			t.Errorf("unexpected %s arg for transparent background", a.Key)
		}
	}
}

func TestTranslatorMemoizes(t *testing.T) {
	tr := NewTranslator("/fonts")
	s := Spec{FontSize: "18", Position: "top"}

	first := tr.OverlayArgs(s)
	second := tr.OverlayArgs(s)
	if len(first) != len(second) {
		t.Fatalf("memoized result differs in length")
	}
	// Same backing slice proves the cache hit.
	if &first[0] != &second[0] {
		t.Error("expected cached overlay args on second call")
	}

	if tr.SubtitleOverride(s) != tr.SubtitleOverride(s) {
		t.Error("expected identical override on repeated calls")
	}
}

func TestEscapeDrawtext(t *testing.T) {
	got := EscapeDrawtext(`it's 10:30 C:\tmp`)
	want := `it\'s 10\:30 C\:\\tmp`
	if got != want {
		t.Errorf("EscapeDrawtext = %q, want %q", got, want)
	}
}
