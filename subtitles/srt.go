// Package subtitles generates the burnable caption artifacts: SRT files
// for the subtitles filter and drawtext filter chains for the overlay
// render mode.
package subtitles

import (
	"fmt"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"vidscribe/models"
	"vidscribe/style"
)

// FormatTime renders seconds in the SRT timestamp form HH:MM:SS,mmm.
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := int(seconds) % 60
	ms := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// WriteSRT writes the caption list as an SRT document. Entries with
// empty text are skipped; the rest appear in input order. Missing-field
// filtering happened at parse time, so every caption here is complete.
func WriteSRT(w io.Writer, captions []models.Caption) error {
	for _, c := range captions {
		text := strings.TrimSpace(strings.ReplaceAll(c.Text, "\n", " "))
		if text == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			c.ID, FormatTime(c.Start), FormatTime(c.End), text); err != nil {
			return err
		}
	}
	return nil
}

// WriteSRTFile writes the SRT document to path.
func WriteSRTFile(path string, captions []models.Caption) error {
	f, err := os.Create(path)
	if err != nil {
		return pkgerrors.Wrap(err, "create srt file")
	}
	if err := WriteSRT(f, captions); err != nil {
		_ = f.Close()
		return pkgerrors.Wrap(err, "write srt file")
	}
	return pkgerrors.Wrap(f.Close(), "close srt file")
}

// DrawtextFilters builds one drawtext filter per caption, enabled only
// inside the caption's time window, styled with the overlay arguments.
func DrawtextFilters(captions []models.Caption, args []style.OverlayArg) string {
	filters := make([]string, 0, len(captions))
	for _, c := range captions {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "drawtext=text='%s'", style.EscapeDrawtext(text))
		for _, arg := range args {
			fmt.Fprintf(&b, ":%s=%s", arg.Key, arg.Value)
		}
		fmt.Fprintf(&b, ":enable='between(t,%g,%g)'", c.Start, c.End)
		filters = append(filters, b.String())
	}
	return strings.Join(filters, ",")
}
