package dispatcher

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/merger"
)

// WriteArtifacts writes <base>.html, <base>.css and <base>.js for the
// source at srcPath into outDir, plus <base>.map.json when the output has
// a source map. Empty CSS and JS artifacts are skipped. It returns the
// paths written.
func WriteArtifacts(outDir, srcPath string, out *merger.MergedOutput) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.FileOperationError("create", outDir, err)
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	files := []struct {
		ext     string
		content string
		always  bool
	}{
		{".html", out.HTML, true},
		{".css", out.CSS, false},
		{".js", out.JS, false},
	}

	var written []string
	for _, f := range files {
		if f.content == "" && !f.always {
			continue
		}
		path := filepath.Join(outDir, base+f.ext)
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			return written, errors.FileOperationError("write", path, err)
		}
		written = append(written, path)
	}

	if len(out.SourceMap) > 0 {
		data, err := json.MarshalIndent(out.SourceMap, "", "  ")
		if err != nil {
			return written, errors.WrapInternal(err, errors.ErrCodeInternalError, "encode source map")
		}
		path := filepath.Join(outDir, base+".map.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, errors.FileOperationError("write", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
