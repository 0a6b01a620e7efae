package git

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// moveSimilarityThreshold is the unchanged-line fraction a same-path edit
// must keep for the file to count as the same logical asset.
const moveSimilarityThreshold = 0.5

// rawChange is one entry of `git diff-tree -r -z --no-renames --raw`.
type rawChange struct {
	oldID  string
	newID  string
	status byte
	path   string
}

// parseRawDiff parses NUL-separated raw diff output. Each entry consists of
// a metadata token ":oldmode newmode oldsha newsha status" followed by the
// path token.
func parseRawDiff(out []byte) ([]rawChange, error) {
	var entries []rawChange
	tokens := bytes.Split(out, []byte{0})
	for i := 0; i < len(tokens); i++ {
		meta := string(tokens[i])
		if meta == "" {
			continue
		}
		if !strings.HasPrefix(meta, ":") {
			return nil, fmt.Errorf("unexpected diff token %q", meta)
		}
		fields := strings.Fields(meta[1:])
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed diff entry %q", meta)
		}
		if i+1 >= len(tokens) {
			return nil, fmt.Errorf("diff entry %q has no path", meta)
		}
		i++
		entry := rawChange{
			oldID:  fields[2],
			newID:  fields[3],
			status: fields[4][0],
			path:   string(tokens[i]),
		}
		// Type changes (file <-> symlink) carry content like any edit.
		if entry.status == 'T' {
			entry.status = 'M'
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// resolveChanges turns raw entries into affected files: identical-content
// entries are dropped, delete/add pairs with matching content hashes merge
// into moves, and remaining edits keep their old identity only when the
// content similarity clears the threshold. blobLoader reads blob content for
// the similarity check; a load failure counts as zero similarity.
func resolveChanges(entries []rawChange, blobLoader func(id string) ([]byte, error)) []model.AffectedFile {
	// Pair every added entry with the first unclaimed deleted entry carrying
	// the same content hash, regardless of where either sits in the stream.
	deletedByID := make(map[string][]int)
	for i, e := range entries {
		if e.status == 'D' {
			deletedByID[e.oldID] = append(deletedByID[e.oldID], i)
		}
	}
	claimed := make(map[int]bool)
	pairedDelete := make(map[int]int)
	for i, e := range entries {
		if e.status != 'A' {
			continue
		}
		for _, idx := range deletedByID[e.newID] {
			if !claimed[idx] {
				claimed[idx] = true
				pairedDelete[i] = idx
				break
			}
		}
	}

	var files []model.AffectedFile
	for i, e := range entries {
		switch e.status {
		case 'A':
			if idx, ok := pairedDelete[i]; ok {
				del := entries[idx]
				files = append(files, model.AffectedFile{
					NewPath:    e.path,
					OldPath:    del.path,
					ChangeType: model.ChangeTypeEdit,
					OldBlobID:  del.oldID,
					NewBlobID:  e.newID,
				})
				continue
			}
			files = append(files, model.AffectedFile{
				NewPath:    e.path,
				ChangeType: model.ChangeTypeAdd,
				NewBlobID:  e.newID,
			})
		case 'D':
			if claimed[i] {
				continue
			}
			files = append(files, model.AffectedFile{
				NewPath:    e.path,
				ChangeType: model.ChangeTypeDelete,
				OldBlobID:  e.oldID,
			})
		case 'M':
			if e.oldID == e.newID {
				// Mode-only change, content untouched.
				continue
			}
			f := model.AffectedFile{
				NewPath:    e.path,
				ChangeType: model.ChangeTypeEdit,
				OldBlobID:  e.oldID,
				NewBlobID:  e.newID,
			}
			if blobSimilarity(e, blobLoader) >= moveSimilarityThreshold {
				f.OldPath = e.path
			} else {
				// Below the threshold the file is a different artifact at
				// the same path; it carries no history, not even a blob one.
				f.OldBlobID = e.newID
			}
			files = append(files, f)
		default:
			slog.Warn("skipping unsupported diff status",
				"status", string(e.status), "path", e.path)
		}
	}
	return files
}

func blobSimilarity(e rawChange, blobLoader func(id string) ([]byte, error)) float64 {
	oldContent, err := blobLoader(e.oldID)
	if err != nil {
		slog.Debug("old blob unreadable, treating edit as replacement", "path", e.path, "error", err)
		return 0
	}
	newContent, err := blobLoader(e.newID)
	if err != nil {
		slog.Debug("new blob unreadable, treating edit as replacement", "path", e.path, "error", err)
		return 0
	}
	return lineSimilarity(oldContent, newContent)
}

// lineSimilarity returns the fraction of unchanged lines between two blobs,
// measured against the longer side.
func lineSimilarity(oldContent, newContent []byte) float64 {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)
	if len(oldLines) == 0 || len(newLines) == 0 {
		return 0
	}
	longer := max(len(oldLines), len(newLines))
	return float64(lcsLength(oldLines, newLines)) / float64(longer)
}

func splitLines(content []byte) []string {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// lcsLength computes the longest-common-subsequence length over lines with a
// two-row table.
func lcsLength(a, b []string) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
		clear(curr)
	}
	return prev[len(b)]
}
