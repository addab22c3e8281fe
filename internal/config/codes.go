package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/titanous/json5"

	"github.com/fxsnapshot/fxsnapshot/internal/utils"
)

// CodesPerRow is how many codes a row of the tracked code file holds.
const CodesPerRow = 12

// ErrNoCodeList is returned by Load when no tracked code list has been saved yet.
var ErrNoCodeList = errors.New("tracked code list not found")

// CodeList persists the tracked code set between runs.
type CodeList interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, codes []string) error
}

type codeListFile struct {
	TrackedCodes []string `json:"tracked_codes"`
}

// FileCodeList stores the tracked code set as {"tracked_codes": [...]} in a file.
type FileCodeList struct {
	Path string
}

func NewFileCodeList(path string) *FileCodeList {
	return &FileCodeList{Path: path}
}

func (f *FileCodeList) Load(_ context.Context) ([]string, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCodeList
	}
	if err != nil {
		return nil, err
	}
	var doc codeListFile
	if err := json5.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("tracked codes %s: %w", f.Path, err)
	}
	return NormalizeCodes(doc.TrackedCodes), nil
}

// Save writes codes sorted and deduplicated, CodesPerRow per line, replacing the
// file atomically.
func (f *FileCodeList) Save(_ context.Context, codes []string) error {
	return utils.WriteFileAtomic(f.Path, FormatCodeList(NormalizeCodes(codes)))
}

// NormalizeCodes upper-cases, trims, deduplicates and sorts codes.
func NormalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FormatCodeList renders the file body with a fixed number of codes per row so the
// file diffs cleanly between runs.
func FormatCodeList(codes []string) []byte {
	var b strings.Builder
	b.WriteString("{\n    \"tracked_codes\": [")
	if len(codes) == 0 {
		b.WriteString("]\n}\n")
		return []byte(b.String())
	}
	b.WriteString("\n")
	for i := 0; i < len(codes); i += CodesPerRow {
		end := min(i+CodesPerRow, len(codes))
		quoted := make([]string, 0, end-i)
		for _, c := range codes[i:end] {
			q, _ := json.Marshal(c)
			quoted = append(quoted, string(q))
		}
		b.WriteString("        ")
		b.WriteString(strings.Join(quoted, ", "))
		if end < len(codes) {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("    ]\n}\n")
	return []byte(b.String())
}
