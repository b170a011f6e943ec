package filehandler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// GatherFiles collects all image files in a directory (non-recursive)
func GatherFiles(dirPath string) ([]string, error) {
	var files []string

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue // Skip directories
		}
		if !IsImageFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dirPath, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}

// ReadLines reads a file and returns its non-empty, non-comment lines
func ReadLines(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	return lines, scanner.Err()
}

// DownloadFromURL downloads rawURL into outputDir, or the system temp
// directory when outputDir is empty, refusing bodies larger than maxSize
func DownloadFromURL(ctx context.Context, client *http.Client, rawURL, outputDir string, maxSize int64) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	if outputDir == "" {
		outputDir = os.TempDir()
	}
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, downloadName(rawURL))
	out, err := os.Create(outputPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	var body io.Reader = resp.Body
	if maxSize > 0 {
		body = io.LimitReader(resp.Body, maxSize+1)
	}
	written, err := io.Copy(out, body)
	if err != nil {
		os.Remove(outputPath)
		return "", err
	}
	if maxSize > 0 && written > maxSize {
		os.Remove(outputPath)
		return "", fmt.Errorf("%w: download exceeds %d bytes", ErrFileTooLarge, maxSize)
	}

	return outputPath, nil
}

// downloadName extracts a safe file name from the URL path
func downloadName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("deforge_download_%d", time.Now().UnixNano())
	}
	return name
}
