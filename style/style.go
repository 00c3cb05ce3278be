// Package style translates an abstract caption style into the two render
// representations: drawtext overlay arguments and an ASS force_style
// override. Translation is pure, tolerant of malformed fields, and never
// fails; results are memoized by the style fingerprint.
package style

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Spec carries the caller-supplied style fields as raw strings. Empty
// means unset. Fields that fail to parse downstream are ignored, never
// fatal.
type Spec struct {
	FontFamily      string
	FontSize        string
	Color           string
	Shadow          string
	Outline         string
	BackgroundColor string
	Position        string
}

// ParseSpec decodes a style JSON object. Unknown keys and non-scalar
// values are dropped silently; a body that is not an object yields the
// zero Spec.
func ParseSpec(data []byte) Spec {
	var raw map[string]any
	if len(data) == 0 || json.Unmarshal(data, &raw) != nil {
		return Spec{}
	}
	return Spec{
		FontFamily:      scalarString(raw["fontFamily"]),
		FontSize:        scalarString(raw["fontSize"]),
		Color:           scalarString(raw["color"]),
		Shadow:          scalarString(raw["shadow"]),
		Outline:         scalarString(raw["outline"]),
		BackgroundColor: scalarString(raw["backgroundColor"]),
		Position:        scalarString(raw["position"]),
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// Fingerprint is the canonical serialization used as memoization key.
func (s Spec) Fingerprint() string {
	return strings.Join([]string{
		s.FontFamily, s.FontSize, s.Color, s.Shadow,
		s.Outline, s.BackgroundColor, s.Position,
	}, "\x1f")
}

// OverlayArg is one ordered key-value pair for the drawtext filter.
type OverlayArg struct {
	Key   string
	Value string
}

// Translator memoizes both render representations per fingerprint.
type Translator struct {
	fontDir string

	mu       sync.Mutex
	overlay  map[string][]OverlayArg
	override map[string]string
}

func NewTranslator(fontDir string) *Translator {
	return &Translator{
		fontDir:  fontDir,
		overlay:  make(map[string][]OverlayArg),
		override: make(map[string]string),
	}
}

// OverlayArgs maps a style Spec to drawtext arguments. Horizontal position
// always centers; vertical position defaults to bottom.
func (t *Translator) OverlayArgs(s Spec) []OverlayArg {
	key := s.Fingerprint()
	t.mu.Lock()
	if args, ok := t.overlay[key]; ok {
		t.mu.Unlock()
		return args
	}
	t.mu.Unlock()

	args := t.buildOverlayArgs(s)

	t.mu.Lock()
	t.overlay[key] = args
	t.mu.Unlock()
	return args
}

func (t *Translator) buildOverlayArgs(s Spec) []OverlayArg {
	var args []OverlayArg

	if s.FontFamily != "" {
		family := strings.TrimSpace(strings.Split(s.FontFamily, ",")[0])
		if family != "" {
			args = append(args, OverlayArg{"fontfile", filepath.Join(t.fontDir, family+".ttf")})
		}
	}
	if size, err := strconv.ParseFloat(s.FontSize, 64); err == nil {
		args = append(args, OverlayArg{"fontsize", strconv.Itoa(int(size))})
	}
	if isHexColor(s.Color) {
		args = append(args, OverlayArg{"fontcolor", s.Color})
	}
	if shadow, err := strconv.ParseFloat(s.Shadow, 64); err == nil {
		offset := strconv.Itoa(int(shadow))
		args = append(args, OverlayArg{"shadowx", offset}, OverlayArg{"shadowy", offset})
	}
	if outline, err := strconv.ParseFloat(s.Outline, 64); err == nil {
		args = append(args, OverlayArg{"borderw", strconv.Itoa(int(outline))})
	}
	if s.BackgroundColor != "transparent" && isHexColor(s.BackgroundColor) {
		args = append(args,
			OverlayArg{"box", "1"},
			OverlayArg{"boxcolor", s.BackgroundColor + "@0.7"},
		)
	}

	switch s.Position {
	case "top":
		args = append(args, OverlayArg{"y", "h*0.05"})
	case "middle":
		args = append(args, OverlayArg{"y", "(h-text_h)/2"})
	default:
		args = append(args, OverlayArg{"y", "h-text_h-40"})
	}
	args = append(args, OverlayArg{"x", "(w-text_w)/2"})
	return args
}

// assOverride is the structured ASS force_style baseline. Overrides are
// applied as field assignments and serialized only at the point of use,
// keeping the sparse-patch semantics without text substitution.
type assOverride struct {
	FontSize      int
	FontName      string
	PrimaryColour string
	OutlineColour string
	BackColour    string
	BoxColour     string
	Outline       float64
	Shadow        float64
	Alignment     int
}

// baselineOverride is the fixed starting appearance: size 16, outline 1,
// shadow 0.5, white text, black outline, semi-transparent box, anchored
// per the bottom alignment code.
func baselineOverride() assOverride {
	return assOverride{
		FontSize:      16,
		PrimaryColour: "&HFFFFFF&",
		OutlineColour: "&H000000&",
		BackColour:    "&H80000000&",
		BoxColour:     "&H80000000&",
		Outline:       1,
		Shadow:        0.5,
		Alignment:     8,
	}
}

func (o assOverride) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fontsize=%d", o.FontSize)
	fmt.Fprintf(&b, ",Outline=%s", formatFloat(o.Outline))
	fmt.Fprintf(&b, ",Shadow=%s", formatFloat(o.Shadow))
	b.WriteString(",BorderStyle=1")
	fmt.Fprintf(&b, ",PrimaryColour=%s", o.PrimaryColour)
	fmt.Fprintf(&b, ",OutlineColour=%s", o.OutlineColour)
	fmt.Fprintf(&b, ",BackColour=%s", o.BackColour)
	fmt.Fprintf(&b, ",Alignment=%d", o.Alignment)
	b.WriteString(",Box=1")
	fmt.Fprintf(&b, ",BoxColour=%s", o.BoxColour)
	if o.FontName != "" {
		fmt.Fprintf(&b, ",Fontname=%s", o.FontName)
	}
	return b.String()
}

// SubtitleOverride maps a style Spec onto the baseline and serializes the
// result. Any field whose value fails to parse keeps its prior value.
func (t *Translator) SubtitleOverride(s Spec) string {
	key := s.Fingerprint()
	t.mu.Lock()
	if out, ok := t.override[key]; ok {
		t.mu.Unlock()
		return out
	}
	t.mu.Unlock()

	out := buildSubtitleOverride(s)

	t.mu.Lock()
	t.override[key] = out
	t.mu.Unlock()
	return out
}

func buildSubtitleOverride(s Spec) string {
	o := baselineOverride()

	if size, err := strconv.ParseFloat(s.FontSize, 64); err == nil {
		o.FontSize = int(size)
	}
	if s.FontFamily != "" {
		if family := strings.TrimSpace(strings.Split(s.FontFamily, ",")[0]); family != "" {
			o.FontName = family
		}
	}
	if bgr, ok := hexToBGR(s.Color); ok {
		o.PrimaryColour = fmt.Sprintf("&H00%s&", bgr)
	}
	if back, ok := backgroundColour(s.BackgroundColor); ok {
		o.BackColour = back
		o.BoxColour = back
	}
	if outline, err := strconv.ParseFloat(s.Outline, 64); err == nil {
		o.Outline = outline
	}
	if shadow, err := strconv.ParseFloat(s.Shadow, 64); err == nil {
		o.Shadow = shadow
	}
	switch s.Position {
	case "bottom":
		o.Alignment = 8
	case "top":
		o.Alignment = 2
	case "middle":
		o.Alignment = 5
	}

	return o.String()
}

var rgbaPattern = regexp.MustCompile(`^rgba\((\d+), ?(\d+), ?(\d+)(?:, ?([\d.]+))?\)$`)

// backgroundColour converts #RRGGBB or rgba(...) into the reversed
// byte-order ASS colour. The alpha rule is uniform across input forms:
// the input's alpha is used when it carries one, otherwise the baseline
// 0x80 is kept.
func backgroundColour(raw string) (string, bool) {
	if bgr, ok := hexToBGR(raw); ok {
		return fmt.Sprintf("&H80%s&", bgr), true
	}
	m := rgbaPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	r, errR := strconv.Atoi(m[1])
	g, errG := strconv.Atoi(m[2])
	b, errB := strconv.Atoi(m[3])
	if errR != nil || errG != nil || errB != nil || r > 255 || g > 255 || b > 255 {
		return "", false
	}
	alpha := 0x80
	if m[4] != "" {
		a, err := strconv.ParseFloat(m[4], 64)
		if err != nil || a < 0 || a > 1 {
			return "", false
		}
		alpha = int((1 - a) * 255)
	}
	return fmt.Sprintf("&H%02X%02X%02X%02X&", alpha, b, g, r), true
}

// hexToBGR converts a well-formed #RRGGBB into the BBGGRR hex digits the
// subtitle markup convention expects.
func hexToBGR(color string) (string, bool) {
	if !isHexColor(color) {
		return "", false
	}
	r, g, b := color[1:3], color[3:5], color[5:7]
	return strings.ToUpper(b + g + r), true
}

var hexPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func isHexColor(color string) bool {
	return hexPattern.MatchString(color)
}

// formatFloat renders a number without trailing zeros, matching how the
// override values are written by hand.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// EscapeDrawtext escapes the drawtext special characters so caption text
// cannot corrupt the filter expression.
func EscapeDrawtext(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, ":", `\:`)
	text = strings.ReplaceAll(text, "'", `\'`)
	return text
}
