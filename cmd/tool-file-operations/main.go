// tool-file-operations reads and writes files under a confined root
// directory. The root defaults to the user's home directory and can
// be overridden with JARVIS_FILE_ROOT.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jarvislabs/jarvis/internal/toolproc"
)

func main() {
	toolproc.Main(map[string]toolproc.Handler{
		"read_file":        readFile,
		"write_file":       writeFile,
		"list_directory":   listDirectory,
		"create_directory": createDirectory,
		"delete_file":      deleteFile,
		"file_info":        fileInfo,
	})
}

const maxReadBytes = 4 << 20

// resolvePath confines a requested path to the allowed root.
// Relative paths are resolved against the root.
func resolvePath(requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("path parameter is required")
	}

	root := os.Getenv("JARVIS_FILE_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		root = home
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	path := requested
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the allowed root", requested)
	}
	return path, nil
}

type fileContent struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Content string `json:"content"`
}

func readFile(req toolproc.Request) (any, error) {
	path, err := resolvePath(req.String("path", ""))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxReadBytes {
		return nil, fmt.Errorf("file exceeds %d byte read limit", maxReadBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return fileContent{Path: path, Size: info.Size(), Content: string(data)}, nil
}

type writeOutcome struct {
	Path    string `json:"path"`
	Written int    `json:"written"`
}

func writeFile(req toolproc.Request) (any, error) {
	path, err := resolvePath(req.String("path", ""))
	if err != nil {
		return nil, err
	}
	content, ok := req.Params["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content parameter is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}
	return writeOutcome{Path: path, Written: len(content)}, nil
}

type dirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

type dirListing struct {
	Path    string     `json:"path"`
	Entries []dirEntry `json:"entries"`
}

func listDirectory(req toolproc.Request) (any, error) {
	path, err := resolvePath(req.String("path", "."))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}

	listing := dirListing{Path: path, Entries: []dirEntry{}}
	for _, e := range entries {
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		listing.Entries = append(listing.Entries, dirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
			Size:  size,
		})
	}
	sort.Slice(listing.Entries, func(i, j int) bool {
		return listing.Entries[i].Name < listing.Entries[j].Name
	})
	return listing, nil
}

func createDirectory(req toolproc.Request) (any, error) {
	path, err := resolvePath(req.String("path", ""))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	return map[string]any{"path": path, "created": true}, nil
}

func deleteFile(req toolproc.Request) (any, error) {
	path, err := resolvePath(req.String("path", ""))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("deleting: %w", err)
	}
	if info.IsDir() {
		// Directories must be removed explicitly and empty.
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("deleting directory: %w", err)
		}
	} else if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("deleting file: %w", err)
	}
	return map[string]any{"path": path, "deleted": true}, nil
}

type fileInfoResult struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	IsDir    bool   `json:"is_dir"`
	Mode     string `json:"mode"`
	Modified string `json:"modified"`
}

func fileInfo(req toolproc.Request) (any, error) {
	path, err := resolvePath(req.String("path", ""))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	return fileInfoResult{
		Path:     path,
		Size:     info.Size(),
		IsDir:    info.IsDir(),
		Mode:     info.Mode().String(),
		Modified: info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}
