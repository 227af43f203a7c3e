package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/lexcodex/planform/framework"
)

// EditFileTool applies ordered exact-match text replacements to one file.
// Each edit replaces the first occurrence of old_text in the current buffer;
// edits whose old_text is absent are skipped and reported, the rest still
// apply. The response always carries a unified diff of buffer before vs
// after, and dry_run renders the diff without touching the file.
type EditFileTool struct{ Sandbox *Sandbox }

type textEdit struct {
	OldText string
	NewText string
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Applies exact-match text replacements to a file and returns a unified diff."
}
func (t *EditFileTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		{Name: "path", Type: "string", Required: true},
		{Name: "edits", Type: "array", Required: true, Description: "List of {old_text, new_text} replacements, applied in order"},
		{Name: "dry_run", Type: "boolean", Required: false, Default: false},
	}
}

func (t *EditFileTool) Invoke(ctx context.Context, args map[string]interface{}) (string, error) {
	path, err := t.Sandbox.resolve(argString(args, "path"))
	if err != nil {
		return "", err
	}
	edits, err := parseEdits(args["edits"])
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	original := string(data)

	buffer := original
	var skipped []int
	applied := 0
	for i, edit := range edits {
		idx := strings.Index(buffer, edit.OldText)
		if idx < 0 {
			skipped = append(skipped, i+1)
			continue
		}
		buffer = buffer[:idx] + edit.NewText + buffer[idx+len(edit.OldText):]
		applied++
	}

	dryRun := argBool(args, "dry_run")
	if !dryRun && buffer != original {
		if err := os.WriteFile(path, []byte(buffer), 0o644); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	if dryRun {
		b.WriteString("Dry run: no changes written.\n")
	}
	fmt.Fprintf(&b, "Applied %d of %d edits to %s\n", applied, len(edits), argString(args, "path"))
	for _, n := range skipped {
		fmt.Fprintf(&b, "Warning: edit %d skipped, old_text not found\n", n)
	}
	b.WriteString("\n" + UnifiedDiff(argString(args, "path"), original, buffer))
	return b.String(), nil
}

func parseEdits(raw interface{}) ([]textEdit, error) {
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil, framework.Validationf("edits must be a non-empty array of {old_text, new_text} objects")
	}
	edits := make([]textEdit, 0, len(list))
	for i, entry := range list {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			return nil, framework.Validationf("edit %d is not an object", i+1)
		}
		oldText, ok := obj["old_text"].(string)
		if !ok {
			return nil, framework.Validationf("edit %d is missing old_text", i+1)
		}
		newText, _ := obj["new_text"].(string)
		edits = append(edits, textEdit{OldText: oldText, NewText: newText})
	}
	return edits, nil
}

// UnifiedDiff renders a line-based unified diff between two file states.
// diffmatchpatch does the line alignment; the hunk header covers the whole
// file, which keeps the output simple and good enough for model consumption.
func UnifiedDiff(name, before, after string) string {
	if before == after {
		return "(no changes)"
	}
	dmp := diffmatchpatch.New()
	beforeRunes, afterRunes, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeRunes, afterRunes, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var body strings.Builder
	oldLines, newLines := 0, 0
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range splitKeepingContent(d.Text) {
			body.WriteString(prefix + line + "\n")
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				oldLines++
			case diffmatchpatch.DiffInsert:
				newLines++
			default:
				oldLines++
				newLines++
			}
		}
	}
	var out strings.Builder
	fmt.Fprintf(&out, "--- a/%s\n+++ b/%s\n@@ -1,%d +1,%d @@\n", name, name, oldLines, newLines)
	out.WriteString(strings.TrimRight(body.String(), "\n"))
	return out.String()
}

func splitKeepingContent(text string) []string {
	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" && text != "" {
		return []string{""}
	}
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
