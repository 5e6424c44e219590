package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading ~ to the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
}

// JobsPath returns the directory holding per-job outputs
func JobsPath(storagePath string) string {
	return filepath.Join(storagePath, "jobs")
}

// JobDir returns the output directory for a single job
func JobDir(storagePath, jobID string) string {
	return filepath.Join(JobsPath(storagePath), jobID)
}

// EnsureDataDirectories creates the storage directories if they don't exist
func EnsureDataDirectories(storagePath string) error {
	dirs := []string{
		storagePath,
		JobsPath(storagePath),
		filepath.Join(storagePath, "logs"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}
