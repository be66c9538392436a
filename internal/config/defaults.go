package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeEnv overrides the application root directory.
	HomeEnv = "CLIPPER_HOME"
	// DebugEnv turns on debug logging when set to any non-empty value.
	DebugEnv = "CLIPPER_DEBUG"

	workerDirName   = "pipeline"
	workerScript    = "run.py"
	projectsDirName = "projects"
	configFileName  = "api_config.json"
)

// Defaults returns baseline config values for first launch.
func Defaults() map[string]any {
	return map[string]any{
		"groq": map[string]any{
			"model": "llama-3.3-70b-versatile",
		},
		"whisper": map[string]any{
			"model_size": "small",
			"language":   "id",
		},
		"clip": map[string]any{
			"num_clips":    float64(5),
			"min_duration": float64(30),
			"max_duration": float64(90),
		},
	}
}

// Paths is the on-disk layout shared with the worker.
type Paths struct {
	Root         string
	WorkerDir    string
	WorkerScript string
	ProjectsDir  string
	ConfigFile   string
}

// ResolvePaths builds the layout under root.
func ResolvePaths(root string) Paths {
	root = filepath.Clean(root)
	workerDir := filepath.Join(root, workerDirName)
	return Paths{
		Root:         root,
		WorkerDir:    workerDir,
		WorkerScript: filepath.Join(workerDir, workerScript),
		ProjectsDir:  filepath.Join(root, projectsDirName),
		ConfigFile:   filepath.Join(root, configFileName),
	}
}

// DefaultRoot returns CLIPPER_HOME or the directory of the running executable.
func DefaultRoot() string {
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return home
	}
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
