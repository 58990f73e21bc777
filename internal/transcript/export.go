package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// maxExportSize bounds the size of a single chat file read from a zip.
var maxExportSize int64 = 256 << 20

// ErrExportTooLarge is returned for a zipped chat file over maxExportSize.
var ErrExportTooLarge = errors.New("chat file exceeds the export size limit")

const exportPrefix = "WhatsApp Chat with"

// ChatName derives the display name of a chat from its export file name.
func ChatName(fileName string) string {
	name := filepath.Base(fileName)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Replace(name, exportPrefix, "", 1)
	return strings.TrimSpace(name)
}

// IsExport reports whether path looks like a chat export this package can read.
func IsExport(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".zip":
		return true
	}
	return false
}

// ReadExport loads the transcript text of a .txt export, or of the chat file
// inside a .zip export. It returns the chat name alongside the text.
func ReadExport(path string) (chatName, text string, err error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return readZipExport(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read export: %w", err)
	}
	return ChatName(path), string(data), nil
}

func readZipExport(path string) (string, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".txt") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, maxExportSize+1))
		rc.Close()
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		if int64(len(data)) > maxExportSize {
			return "", "", fmt.Errorf("%s: %w (%d bytes)", f.Name, ErrExportTooLarge, maxExportSize)
		}

		// iOS names the inner file "_chat.txt"; the zip name carries the chat then.
		name := ChatName(f.Name)
		if name == "" || name == "_chat" {
			name = ChatName(path)
		}
		return name, string(data), nil
	}

	return "", "", fmt.Errorf("no .txt chat file found in %s", filepath.Base(path))
}
