// Package repopath implements the backslash-separated path grammar used to
// address tests and actions inside the repository, independent of the host
// filesystem. A unit path has the form
//
//	<package>\<test>\<action>:<logicalName>
//
// where the package part may span several folders or be absent for tests at
// the repository root.
package repopath

import (
	"fmt"
	"strings"
)

// Separator joins path segments. It is a backslash regardless of platform so
// paths compare identically on the remote side and on every runner OS.
const Separator = `\`

// FromSlash converts a slash-separated repository-relative path to the
// canonical backslash form. Leading "./" and surrounding separators are
// dropped.
func FromSlash(rel string) string {
	p := strings.ReplaceAll(rel, "/", Separator)
	p = strings.TrimPrefix(p, "."+Separator)
	return strings.Trim(p, Separator)
}

// ToSlash converts a canonical path back to forward slashes for filesystem
// use.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, Separator, "/")
}

// SplitPrefix splits a test-folder path into the package part and the test
// name. The package is empty for tests at the repository root.
func SplitPrefix(p string) (pkg, name string) {
	p = strings.Trim(p, Separator)
	idx := strings.LastIndex(p, Separator)
	if idx < 0 {
		return "", p
	}
	return p[:idx], p[idx+1:]
}

// Join builds a unit repository path from the test-folder path, the action
// name and its logical name. An empty logical name falls back to the action
// name.
func Join(testPath, actionName, logicalName string) string {
	if logicalName == "" {
		logicalName = actionName
	}
	return testPath + Separator + actionName + ":" + logicalName
}

// ActionRef is a parsed unit repository path.
type ActionRef struct {
	TestPath    string
	ActionName  string
	LogicalName string
}

// Parse splits a unit repository path into its parts. Paths written by this
// module always carry the ":<logicalName>" suffix; for foreign paths without
// one the logical name falls back to the action name.
func Parse(p string) (ActionRef, error) {
	idx := strings.LastIndex(p, Separator)
	if idx < 0 {
		return ActionRef{}, fmt.Errorf("repository path %q: no test folder segment", p)
	}
	ref := ActionRef{TestPath: p[:idx]}
	tail := p[idx+1:]
	if colon := strings.Index(tail, ":"); colon >= 0 {
		ref.ActionName = tail[:colon]
		ref.LogicalName = tail[colon+1:]
	} else {
		ref.ActionName = tail
		ref.LogicalName = tail
	}
	if ref.ActionName == "" {
		return ActionRef{}, fmt.Errorf("repository path %q: empty action name", p)
	}
	return ref, nil
}

// TestFolder returns the test-folder part of a unit repository path.
func TestFolder(p string) (string, error) {
	ref, err := Parse(p)
	if err != nil {
		return "", err
	}
	return ref.TestPath, nil
}

// TestName returns the last segment of a test-folder path.
func TestName(testPath string) string {
	_, name := SplitPrefix(testPath)
	return name
}

// Key canonicalizes a path for case-insensitive map lookups.
func Key(p string) string {
	return strings.ToLower(FromSlash(p))
}
