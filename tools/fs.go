// Package tools implements the filesystem tool suite exposed to LLM agents.
// Every path argument is resolved through the workspace sandbox; a path that
// escapes the allowed base is a fatal per-call error, never a recoverable
// one.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/workspace"
)

// Sandbox bundles the workspace every filesystem tool operates in.
type Sandbox struct {
	WS *workspace.Workspace
}

func (s *Sandbox) resolve(requested string) (string, error) {
	return s.WS.Resolve(requested)
}

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func argBool(args map[string]interface{}, key string) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
		return fmt.Sprint(v) == "true"
	}
	return false
}

// ListAllowedDirectoryTool reports the sandbox root.
type ListAllowedDirectoryTool struct{ Sandbox *Sandbox }

func (t *ListAllowedDirectoryTool) Name() string { return "list_allowed_directory" }
func (t *ListAllowedDirectoryTool) Description() string {
	return "Shows the base directory all file operations are restricted to."
}
func (t *ListAllowedDirectoryTool) Parameters() []framework.ToolParameter { return nil }
func (t *ListAllowedDirectoryTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	return "Allowed directory: " + t.Sandbox.WS.Root(), nil
}

// ReadFileTool reads one UTF-8 file.
type ReadFileTool struct{ Sandbox *Sandbox }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Reads a file from the workspace." }
func (t *ReadFileTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{{Name: "path", Type: "string", Required: true}}
}
func (t *ReadFileTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := t.Sandbox.resolve(argString(args, "path"))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadMultipleFilesTool reads several files in one call, reporting per-file
// failures inline so one bad path does not sink the batch.
type ReadMultipleFilesTool struct{ Sandbox *Sandbox }

func (t *ReadMultipleFilesTool) Name() string { return "read_multiple_files" }
func (t *ReadMultipleFilesTool) Description() string {
	return "Reads several files at once; individual failures are reported per file."
}
func (t *ReadMultipleFilesTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{{Name: "paths", Type: "array", Required: true, Description: "File paths to read"}}
}
func (t *ReadMultipleFilesTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	raw, ok := args["paths"].([]interface{})
	if !ok {
		return "", framework.Validationf("paths must be an array of strings")
	}
	var b strings.Builder
	for _, entry := range raw {
		requested := fmt.Sprint(entry)
		b.WriteString(requested + ":\n")
		path, err := t.Sandbox.resolve(requested)
		if err != nil {
			// Sandbox escapes stay fatal even inside a batch.
			return "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			b.WriteString("  Error: " + err.Error() + "\n")
			continue
		}
		b.WriteString(string(data) + "\n")
	}
	return b.String(), nil
}

// WriteFileTool writes content, creating parent directories as needed.
type WriteFileTool struct{ Sandbox *Sandbox }

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Writes content to a file, creating parents." }
func (t *WriteFileTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "path", Type: "string", Required: true},
		{Name: "content", Type: "string", Required: true},
	}
}
func (t *WriteFileTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := t.Sandbox.resolve(argString(args, "path"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	content := argString(args, "content")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), argString(args, "path")), nil
}

// CreateDirectoryTool makes a directory tree.
type CreateDirectoryTool struct{ Sandbox *Sandbox }

func (t *CreateDirectoryTool) Name() string        { return "create_directory" }
func (t *CreateDirectoryTool) Description() string { return "Creates a directory (and parents)." }
func (t *CreateDirectoryTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{{Name: "path", Type: "string", Required: true}}
}
func (t *CreateDirectoryTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := t.Sandbox.resolve(argString(args, "path"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return "Created directory " + argString(args, "path"), nil
}

// ListDirectoryTool lists one directory level with [FILE]/[DIR] markers.
type ListDirectoryTool struct{ Sandbox *Sandbox }

func (t *ListDirectoryTool) Name() string        { return "list_directory" }
func (t *ListDirectoryTool) Description() string { return "Lists entries of a directory." }
func (t *ListDirectoryTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{{Name: "path", Type: "string", Required: false, Default: "."}}
}
func (t *ListDirectoryTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	requested := argString(args, "path")
	if requested == "" {
		requested = "."
	}
	path, err := t.Sandbox.resolve(requested)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, entry := range entries {
		marker := "[FILE]"
		if entry.IsDir() {
			marker = "[DIR] "
		}
		b.WriteString(marker + " " + entry.Name() + "\n")
	}
	if b.Len() == 0 {
		return "(empty directory)", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// MoveFileTool renames a file or directory within the sandbox.
type MoveFileTool struct{ Sandbox *Sandbox }

func (t *MoveFileTool) Name() string        { return "move_file" }
func (t *MoveFileTool) Description() string { return "Moves or renames a file within the workspace." }
func (t *MoveFileTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "source", Type: "string", Required: true},
		{Name: "destination", Type: "string", Required: true},
	}
}
func (t *MoveFileTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	src, err := t.Sandbox.resolve(argString(args, "source"))
	if err != nil {
		return "", err
	}
	dst, err := t.Sandbox.resolve(argString(args, "destination"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved %s to %s", argString(args, "source"), argString(args, "destination")), nil
}

// GetFileInfoTool stats a path.
type GetFileInfoTool struct{ Sandbox *Sandbox }

func (t *GetFileInfoTool) Name() string        { return "get_file_info" }
func (t *GetFileInfoTool) Description() string { return "Returns size, mode, and timestamps for a path." }
func (t *GetFileInfoTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{{Name: "path", Type: "string", Required: true}}
}
func (t *GetFileInfoTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := t.Sandbox.resolve(argString(args, "path"))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("name: %s\nsize: %d\nmode: %s\nmodified: %s\nis_dir: %t",
		info.Name(), info.Size(), info.Mode(), info.ModTime().UTC().Format("2006-01-02T15:04:05Z"), info.IsDir()), nil
}

// DirectoryTreeTool renders a recursive listing, skipping dotfiles.
type DirectoryTreeTool struct{ Sandbox *Sandbox }

func (t *DirectoryTreeTool) Name() string        { return "directory_tree" }
func (t *DirectoryTreeTool) Description() string { return "Renders a recursive tree of the workspace." }
func (t *DirectoryTreeTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{{Name: "path", Type: "string", Required: false, Default: "."}}
}
func (t *DirectoryTreeTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	requested := argString(args, "path")
	if requested == "" {
		requested = "."
	}
	root, err := t.Sandbox.resolve(requested)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		b.WriteString(strings.Repeat("  ", depth))
		if d.IsDir() {
			b.WriteString(d.Name() + "/\n")
		} else {
			b.WriteString(d.Name() + "\n")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if b.Len() == 0 {
		return "(empty)", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// SearchFilesTool matches file names against a glob, optionally case
// sensitive, anywhere under the given directory.
type SearchFilesTool struct{ Sandbox *Sandbox }

func (t *SearchFilesTool) Name() string        { return "search_files" }
func (t *SearchFilesTool) Description() string { return "Finds files whose names match a glob pattern." }
func (t *SearchFilesTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "pattern", Type: "string", Required: true},
		{Name: "path", Type: "string", Required: false, Default: "."},
		{Name: "case_sensitive", Type: "boolean", Required: false, Default: false},
	}
}
func (t *SearchFilesTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	requested := argString(args, "path")
	if requested == "" {
		requested = "."
	}
	root, err := t.Sandbox.resolve(requested)
	if err != nil {
		return "", err
	}
	pattern := argString(args, "pattern")
	caseSensitive := argBool(args, "case_sensitive")
	if !caseSensitive {
		pattern = strings.ToLower(pattern)
	}
	var matches []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := d.Name()
		if !caseSensitive {
			name = strings.ToLower(name)
		}
		ok, matchErr := filepath.Match(pattern, name)
		if matchErr != nil {
			return matchErr
		}
		if ok {
			rel, _ := filepath.Rel(t.Sandbox.WS.Root(), path)
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No matches for " + argString(args, "pattern"), nil
	}
	sort.Strings(matches)
	return strings.Join(matches, "\n"), nil
}

// FilesystemTools builds the full suite over one sandbox, in the order they
// are presented to agents.
func FilesystemTools(ws *workspace.Workspace) []framework.Tool {
	sandbox := &Sandbox{WS: ws}
	return []framework.Tool{
		&ListAllowedDirectoryTool{Sandbox: sandbox},
		&ReadFileTool{Sandbox: sandbox},
		&ReadMultipleFilesTool{Sandbox: sandbox},
		&WriteFileTool{Sandbox: sandbox},
		&EditFileTool{Sandbox: sandbox},
		&CreateDirectoryTool{Sandbox: sandbox},
		&ListDirectoryTool{Sandbox: sandbox},
		&DirectoryTreeTool{Sandbox: sandbox},
		&MoveFileTool{Sandbox: sandbox},
		&SearchFilesTool{Sandbox: sandbox},
		&GetFileInfoTool{Sandbox: sandbox},
	}
}
