package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const metaDirName = "keeper"

// Location pins down the repository keeper operates on.
type Location struct {
	WorkTree string // empty for bare repositories
	GitDir   string
}

// CommonDir is the directory shared by all worktrees: objects, refs and hooks live here.
func (l Location) CommonDir() string {
	data, err := os.ReadFile(filepath.Join(l.GitDir, "commondir"))
	if err != nil {
		return l.GitDir
	}
	dir := strings.TrimSpace(string(data))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(l.GitDir, dir)
	}
	return filepath.Clean(dir)
}

func (l Location) MetaDir() string    { return filepath.Join(l.CommonDir(), metaDirName) }
func (l Location) DBPath() string     { return filepath.Join(l.MetaDir(), "keeper.db") }
func (l Location) ConfigPath() string { return filepath.Join(l.MetaDir(), "config.yaml") }
func (l Location) HooksDir() string   { return filepath.Join(l.CommonDir(), "hooks") }
func (l Location) RefsDir() string    { return filepath.Join(l.CommonDir(), "refs") }

// IsInitialized reports whether keeper's metadata directory exists.
func (l Location) IsInitialized() bool {
	info, err := os.Stat(l.MetaDir())
	return err == nil && info.IsDir()
}

type LocationResolver struct {
	getwd func() (string, error)
}

func NewLocationResolver() *LocationResolver {
	return &LocationResolver{getwd: os.Getwd}
}

// Resolve finds the repository enclosing dir, or the working directory when
// dir is empty. GIT_DIR takes precedence, as it does for git itself.
func (r *LocationResolver) Resolve(dir string) (Location, error) {
	if gitDir := os.Getenv("GIT_DIR"); gitDir != "" {
		abs, err := filepath.Abs(gitDir)
		if err != nil {
			return Location{}, fmt.Errorf("resolve GIT_DIR: %w", err)
		}
		return Location{WorkTree: os.Getenv("GIT_WORK_TREE"), GitDir: abs}, nil
	}

	if dir == "" {
		wd, err := r.getwd()
		if err != nil {
			return Location{}, fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	return findLocation(dir)
}

func findLocation(dir string) (Location, error) {
	for {
		dotGit := filepath.Join(dir, ".git")
		info, err := os.Stat(dotGit)
		if err == nil {
			if info.IsDir() {
				return Location{WorkTree: dir, GitDir: dotGit}, nil
			}
			gitDir, err := readGitFile(dotGit)
			if err != nil {
				return Location{}, err
			}
			return Location{WorkTree: dir, GitDir: gitDir}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Location{}, ErrNotGitRepository
		}
		dir = parent
	}
}

// readGitFile follows a linked worktree's ".git" file to its git dir.
func readGitFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	line := strings.TrimSpace(string(data))
	gitDir, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("%w: malformed %s", ErrNotGitRepository, path)
	}
	gitDir = strings.TrimSpace(gitDir)
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(filepath.Dir(path), gitDir)
	}
	return filepath.Clean(gitDir), nil
}

// EnvVars is the environment handed to external keeper-* commands.
func (r *LocationResolver) EnvVars(loc Location, version string) map[string]string {
	bin, _ := os.Executable()
	return map[string]string{
		"KEEPER_GIT_DIR":   loc.GitDir,
		"KEEPER_WORK_TREE": loc.WorkTree,
		"KEEPER_DB":        loc.DBPath(),
		"KEEPER_CONFIG":    loc.ConfigPath(),
		"KEEPER_VERSION":   version,
		"KEEPER_BIN":       bin,
	}
}
