package models

import (
	"encoding/json"
	"strings"
)

// Caption is one timestamped transcript segment.
type Caption struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// rawCaption mirrors Caption with pointer fields so that entries missing
// a field can be told apart from zero values and dropped.
type rawCaption struct {
	ID    *int     `json:"id"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  *string  `json:"text"`
}

// ParseCaptionList decodes a caller-supplied caption JSON array. Entries
// missing id, start, end, or text are dropped; surviving entries keep
// their input order. A body that is not a JSON array is an error.
func ParseCaptionList(data []byte) ([]Caption, error) {
	var raw []rawCaption
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	captions := make([]Caption, 0, len(raw))
	for _, r := range raw {
		if r.ID == nil || r.Start == nil || r.End == nil || r.Text == nil {
			continue
		}
		captions = append(captions, Caption{
			ID:    *r.ID,
			Start: *r.Start,
			End:   *r.End,
			Text:  strings.TrimSpace(*r.Text),
		})
	}
	return captions, nil
}
