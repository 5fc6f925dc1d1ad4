package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/ocr"
)

// AllowedExt checks if a file extension is an accepted OCR payload (json/txt).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// Load reads one OCR payload from disk. A .json file holds an OCR result
// object; a .txt file is plain recognized text without geometry.
func Load(path string) (ocr.Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	if !AllowedExt(ext) {
		return ocr.Result{}, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrInvalidInput, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ocr.Result{}, common.WrapError(err, "read "+path)
	}
	return Decode(ext, data)
}

// Decode parses an OCR payload of the given extension.
func Decode(ext string, data []byte) (ocr.Result, error) {
	switch constants.NormalizeExt(ext) {
	case "json":
		var r ocr.Result
		if err := json.Unmarshal(data, &r); err != nil {
			return ocr.Result{}, fmt.Errorf("%w: decode OCR result: %v", common.ErrInvalidInput, err)
		}
		return r, nil
	case "txt":
		return ocr.Result{Text: string(data), Success: true}, nil
	}
	return ocr.Result{}, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrInvalidInput, ext)
}
