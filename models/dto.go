package models

// TranscribeResponse is the API response for a completed transcription.
type TranscribeResponse struct {
	Captions   []Caption `json:"captions"`
	Language   string    `json:"language"`
	Duration   float64   `json:"duration"`
	FileSizeMB float64   `json:"file_size_mb"`
	SessionID  string    `json:"session_id"`
}

// ModelsResponse lists available transcription models.
type ModelsResponse struct {
	Models      []string `json:"models"`
	Default     string   `json:"default"`
	Recommended []string `json:"recommended"`
}

// LanguagesResponse lists supported transcription languages.
type LanguagesResponse struct {
	Languages map[string]string `json:"languages"`
	Default   string            `json:"default"`
}
