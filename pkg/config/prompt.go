package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompt reads one line from the controlling terminal. It refuses to
// read when stdin is not a terminal, so that a run in automation with an
// unreachable Ceph host fails fast instead of blocking forever on input.
func TerminalPrompt(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal, set %s and %s to run non-interactively", EnvCephFSID, EnvCephUserKey)
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
