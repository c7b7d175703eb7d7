package open

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// OpenDoc opens an archive document in $EDITOR, positioned at the line
// carrying the given anchor token (with or without the leading caret).
// An empty anchor opens the top of the file.
func OpenDoc(root, docName, anchor string) error {
	filePath := filepath.Join(root, filepath.FromSlash(docName))
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	lineNum := 1
	if anchor != "" {
		n, err := findAnchorLine(filePath, anchor)
		if err != nil {
			return err
		}
		lineNum = n
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	return openInEditor(editor, filePath, lineNum)
}

func findAnchorLine(filePath, anchor string) (int, error) {
	if !strings.HasPrefix(anchor, "^") {
		anchor = "^" + anchor
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("read document: %w", err)
	}

	for i, line := range strings.Split(string(data), "\n") {
		if strings.HasSuffix(line, " "+anchor) || strings.Contains(line, " "+anchor+" ") {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("anchor not found: %s", anchor)
}

func openInEditor(editor, filePath string, lineNum int) error {
	var cmd *exec.Cmd

	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		cmd = exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		cmd = exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		cmd = exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		cmd = exec.Command(editor, filePath)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
