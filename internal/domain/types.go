package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoSource is returned when a job has neither a URL nor a local file.
var ErrNoSource = errors.New("job needs a source url or a local file")

// ErrAmbiguousSource is returned when a job has both a URL and a local file.
var ErrAmbiguousSource = errors.New("job source url and local file are mutually exclusive")

// JobStatus tracks the overall outcome of one worker run.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Phase names one worker pipeline step as it appears on the wire.
type Phase string

const (
	PhaseDownload   Phase = "download"
	PhaseTranscribe Phase = "transcribe"
	// PhaseDetect is the AI moment detection step. The worker still reports it as "gemini".
	PhaseDetect   Phase = "gemini"
	PhaseCut      Phase = "cut"
	PhaseCrop     Phase = "crop"
	PhaseSubtitle Phase = "subtitle"
)

// PhaseOrder is the fixed execution order of worker phases.
var PhaseOrder = []Phase{
	PhaseDownload,
	PhaseTranscribe,
	PhaseDetect,
	PhaseCut,
	PhaseCrop,
	PhaseSubtitle,
}

// ParsePhase maps a wire step name to a known phase.
func ParsePhase(raw string) (Phase, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "detect" {
		return PhaseDetect, true
	}
	for _, phase := range PhaseOrder {
		if string(phase) == name {
			return phase, true
		}
	}
	return "", false
}

// PhaseStatus is the sub-state of one phase inside a running job.
type PhaseStatus string

const (
	PhaseStatusPending PhaseStatus = "pending"
	PhaseStatusRunning PhaseStatus = "running"
	PhaseStatusDone    PhaseStatus = "done"
	PhaseStatusError   PhaseStatus = "error"
)

// PhaseState is the UI-facing view of one phase.
type PhaseState struct {
	Phase  Phase       `json:"phase"`
	Status PhaseStatus `json:"status"`
	Pct    float64     `json:"pct"`
}

// Job stores the current job identity, lifecycle status and results.
type Job struct {
	ID          string       `json:"id"`
	Status      JobStatus    `json:"status"`
	Phases      []PhaseState `json:"phases"`
	ProjectID   string       `json:"projectId,omitempty"`
	ProjectName string       `json:"projectName,omitempty"`
	Clips       []Clip       `json:"clips,omitempty"`
	FinalFolder string       `json:"finalFolder,omitempty"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"startedAt,omitempty"`
	FinishedAt  time.Time    `json:"finishedAt,omitempty"`
}

// Clip is one detected or rendered clip as reported by the worker.
type Clip struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	StartTime         float64  `json:"start_time"`
	EndTime           float64  `json:"end_time"`
	Duration          float64  `json:"duration"`
	Category          string   `json:"category,omitempty"`
	ViralScore        float64  `json:"viral_score"`
	Hook              string   `json:"hook,omitempty"`
	CaptionSuggestion string   `json:"caption_suggestion,omitempty"`
	Hashtags          []string `json:"hashtags"`
	Reason            string   `json:"reason,omitempty"`
	StartTimeRef      string   `json:"start_time_ref,omitempty"`
	EndTimeRef        string   `json:"end_time_ref,omitempty"`

	IsCut        bool   `json:"is_cut"`
	IsCropped    bool   `json:"is_cropped"`
	IsSubtitled  bool   `json:"is_subtitled"`
	IsApproved   bool   `json:"is_approved"`
	IsUploaded   bool   `json:"is_uploaded"`
	RawCutPath   string `json:"raw_cut_path,omitempty"`
	CroppedPath  string `json:"cropped_path,omitempty"`
	FinalPath    string `json:"final_path,omitempty"`
	Thumbnail    string `json:"thumbnail_path,omitempty"`
	FinalTitle   string `json:"final_title,omitempty"`
	FinalCaption string `json:"final_caption,omitempty"`
}

// DisplayTitle prefers the user-edited title.
func (c Clip) DisplayTitle() string {
	if c.FinalTitle != "" {
		return c.FinalTitle
	}
	return c.Title
}

// JobDescriptor is the single input of a worker run. Field names are the worker protocol.
type JobDescriptor struct {
	URL         string  `json:"url" yaml:"url"`
	File        string  `json:"file" yaml:"file"`
	ProjectName string  `json:"project_name" yaml:"project_name"`
	NumClips    int     `json:"num_clips" yaml:"num_clips"`
	MinDuration int     `json:"min_dur" yaml:"min_dur"`
	MaxDuration int     `json:"max_dur" yaml:"max_dur"`
	DoCrop      bool    `json:"do_crop" yaml:"do_crop"`
	CropMode    string  `json:"crop_mode" yaml:"crop_mode"`
	StyleKey    *string `json:"style_key" yaml:"style_key"`
	FontSize    int     `json:"font_size" yaml:"font_size"`
	VPosition   string  `json:"v_position" yaml:"v_position"`

	GroqAPIKey   string `json:"groq_api_key" yaml:"groq_api_key"`
	GroqModel    string `json:"groq_model" yaml:"groq_model"`
	WhisperModel string `json:"whisper_model" yaml:"whisper_model"`
	WhisperLang  string `json:"whisper_lang" yaml:"whisper_lang"`

	OutputWidth  int    `json:"output_w" yaml:"output_w"`
	OutputHeight int    `json:"output_h" yaml:"output_h"`
	OutputRatio  string `json:"output_ratio" yaml:"output_ratio"`
}

// Validate checks the caller-side submission rules for a job.
func (j JobDescriptor) Validate() error {
	hasURL := strings.TrimSpace(j.URL) != ""
	hasFile := strings.TrimSpace(j.File) != ""
	switch {
	case !hasURL && !hasFile:
		return ErrNoSource
	case hasURL && hasFile:
		return ErrAmbiguousSource
	}

	if j.NumClips < 0 {
		return fmt.Errorf("num_clips must not be negative: %d", j.NumClips)
	}
	if j.MinDuration < 0 || j.MaxDuration < 0 {
		return fmt.Errorf("clip durations must not be negative: %d..%d", j.MinDuration, j.MaxDuration)
	}
	if j.MaxDuration > 0 && j.MinDuration > j.MaxDuration {
		return fmt.Errorf("min_dur %d exceeds max_dur %d", j.MinDuration, j.MaxDuration)
	}
	if j.OutputWidth < 0 || j.OutputHeight < 0 {
		return fmt.Errorf("output size must not be negative: %dx%d", j.OutputWidth, j.OutputHeight)
	}
	switch j.VPosition {
	case "", "bottom", "middle", "top":
	default:
		return fmt.Errorf("unsupported v_position: %s", j.VPosition)
	}
	return nil
}

// Project is the record the worker keeps under projects/<id>/project.json.
type Project struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	SourceURL      string `json:"source_url,omitempty"`
	SourceFile     string `json:"source_file,omitempty"`
	SourcePlatform string `json:"source_platform,omitempty"`
	Folder         string `json:"folder,omitempty"`
	InputVideo     string `json:"input_video,omitempty"`
	Clips          []Clip `json:"clips"`
	VideoSummary   string `json:"video_summary,omitempty"`
	DominantTheme  string `json:"dominant_theme,omitempty"`
}
