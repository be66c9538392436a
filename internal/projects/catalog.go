package projects

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mahira-clipper/internal/domain"
)

// RecordFile is the name of the worker's per-project record.
const RecordFile = "project.json"

// ErrInvalidID is returned for project ids that are empty or contain path elements.
var ErrInvalidID = errors.New("invalid project id")

// Catalog reads and removes the project folders the worker creates.
type Catalog struct {
	dir    string
	base   string
	logger *slog.Logger
}

// NewCatalog creates a catalog over dir. Relative project folders are
// resolved against base, the worker's working directory.
func NewCatalog(dir, base string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{dir: dir, base: base, logger: logger}
}

// Dir returns the projects directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// List returns every readable project, most recently updated first.
// A missing projects directory yields an empty list.
func (c *Catalog) List() ([]domain.Project, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	out := make([]domain.Project, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		project, err := c.Get(entry.Name())
		if err != nil {
			c.logger.Debug("skipping unreadable project", "id", entry.Name(), "error", err)
			continue
		}
		out = append(out, project)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out, nil
}

// Get loads one project record.
func (c *Catalog) Get(id string) (domain.Project, error) {
	if err := ValidateID(id); err != nil {
		return domain.Project{}, err
	}

	data, err := os.ReadFile(filepath.Join(c.dir, id, RecordFile))
	if err != nil {
		return domain.Project{}, err
	}

	project, err := decodeRecord(data)
	if err != nil {
		return domain.Project{}, fmt.Errorf("decode %s: %w", id, err)
	}
	if project.ID == "" {
		project.ID = id
	}
	project.Folder = c.folder(id, project.Folder)
	return project, nil
}

// Delete removes a project folder and everything in it. Deleting a
// project that does not exist is not an error.
func (c *Catalog) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(c.dir, id)); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	c.logger.Info("deleted project", "id", id)
	return nil
}

// ValidateID rejects ids that would escape the projects directory.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (c *Catalog) folder(id, folder string) string {
	if folder == "" {
		folder = filepath.Join(c.dir, id)
	} else if !filepath.IsAbs(folder) && c.base != "" {
		folder = filepath.Join(c.base, folder)
	}
	if abs, err := filepath.Abs(folder); err == nil {
		return abs
	}
	return folder
}

// record shadows Clips: early worker versions stored a clip count there.
type record struct {
	domain.Project
	Clips json.RawMessage `json:"clips"`
}

func decodeRecord(data []byte) (domain.Project, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Project{}, err
	}

	project := rec.Project
	project.Clips = []domain.Clip{}
	raw := strings.TrimSpace(string(rec.Clips))
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal(rec.Clips, &project.Clips); err != nil {
			return domain.Project{}, fmt.Errorf("clips: %w", err)
		}
	}
	return project, nil
}
