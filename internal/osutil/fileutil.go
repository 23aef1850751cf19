package osutil

import "os"

// IsFile reports whether path exists and is a regular file.
// Directories and broken symlinks report false.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
