package config

import (
	"strings"

	"mahira-clipper/internal/domain"
)

// ApplyJobDefaults fills empty model selectors, credentials and clip bounds of job from cfg.
// Fields the caller set are kept.
func ApplyJobDefaults(job domain.JobDescriptor, cfg map[string]any) domain.JobDescriptor {
	fill := func(dst *string, path ...string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = String(cfg, path...)
		}
	}
	fill(&job.GroqAPIKey, "groq", "api_key")
	fill(&job.GroqModel, "groq", "model")
	fill(&job.WhisperModel, "whisper", "model_size")
	fill(&job.WhisperLang, "whisper", "language")

	fillInt := func(dst *int, path ...string) {
		if *dst != 0 {
			return
		}
		if n, ok := Int(cfg, path...); ok {
			*dst = n
		}
	}
	fillInt(&job.NumClips, "clip", "num_clips")
	fillInt(&job.MinDuration, "clip", "min_duration")
	fillInt(&job.MaxDuration, "clip", "max_duration")

	if job.VPosition == "" {
		job.VPosition = "bottom"
	}
	return job
}
