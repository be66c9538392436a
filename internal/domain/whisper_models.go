package domain

// WhisperModelOption describes one faster-whisper model size the worker accepts.
type WhisperModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Recommended bool   `json:"recommended,omitempty"`
	Selected    bool   `json:"selected"`
}
