package guard

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy limits which commands and files agent actions may touch.
type Policy struct {
	AllowedCommands   []string `json:"allowed_commands" yaml:"allowed_commands"`
	AllowedFileGlobs  []string `json:"allowed_file_globs" yaml:"allowed_file_globs"`
	BlockDangerousCmd bool     `json:"block_dangerous_cmd" yaml:"block_dangerous_cmd"`
}

// DefaultPolicy provides safe defaults.
var DefaultPolicy = Policy{
	AllowedCommands:   []string{"ls", "cat", "grep", "git", "go", "mkdir", "echo", "pwd", "wc", "head", "tail"},
	AllowedFileGlobs:  []string{"**"},
	BlockDangerousCmd: true,
}

var dangerousPatterns = []string{
	"rm -rf /",
	"sudo ",
	"mkfs",
	"dd if=",
	":(){",
	"> /dev/sd",
	"chmod -R 777 /",
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
}

func (v *Violation) Error() string {
	return v.Rule + ": " + v.Message
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckCommand verifies that every program a command line runs is allowed.
// The line is split on the shell's control operators (; & | and newlines)
// and each segment is checked. Command substitution, redirection and
// subshells are rejected outright. "*" allows any command.
func (g *Guard) CheckCommand(command string) *Violation {
	if strings.TrimSpace(command) == "" {
		return &Violation{Rule: "allowed_commands", Message: "empty command"}
	}

	if v := g.checkDangerous(command); v != nil {
		return v
	}
	if g.allowsAny() {
		return nil
	}

	segs, construct := splitCommand(command)
	if construct != "" {
		return &Violation{Rule: "allowed_commands", Message: "Shell " + construct + " not allowed: " + command}
	}
	if len(segs) == 0 {
		return &Violation{Rule: "allowed_commands", Message: "empty command"}
	}

	for _, seg := range segs {
		program := filepath.Base(strings.Fields(seg)[0])
		if !g.allows(program) {
			return &Violation{Rule: "allowed_commands", Message: "Command not allowed: " + program}
		}
	}
	return nil
}

func (g *Guard) allowsAny() bool {
	return g.allows("*")
}

func (g *Guard) allows(program string) bool {
	for _, allow := range g.policy.AllowedCommands {
		if allow == "*" || allow == program {
			return true
		}
	}
	return false
}

// splitCommand cuts a command line into the simple commands the shell would
// run. Quoted and escaped characters are literal. A non-empty construct names
// the first substitution, redirection or subshell found.
func splitCommand(command string) (segs []string, construct string) {
	var (
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			segs = append(segs, s)
		}
		cur.Reset()
	}

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == '\'':
			if r == '\'' {
				quote = 0
			}
		case r == '\\' && i+1 < len(runes):
			cur.WriteRune(r)
			i++
			r = runes[i]
		case r == '`', r == '$' && i+1 < len(runes) && runes[i+1] == '(':
			return nil, "command substitution"
		case quote == '"':
			if r == '"' {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';' || r == '&' || r == '|' || r == '\n' || r == '\r':
			flush()
			continue
		case r == '>' || r == '<':
			return nil, "redirection"
		case r == '(' || r == ')':
			return nil, "subshell"
		}
		cur.WriteRune(r)
	}
	flush()
	return segs, ""
}

// CheckFile verifies if a file path is within allowed globs.
func (g *Guard) CheckFile(path string) *Violation {
	clean := filepath.ToSlash(filepath.Clean(path))

	if g.policy.BlockDangerousCmd && (clean == ".." || strings.HasPrefix(clean, "../")) {
		return &Violation{Rule: "block_dangerous_cmd", Message: "Path escapes working directory: " + path}
	}

	for _, pattern := range g.policy.AllowedFileGlobs {
		match, err := doublestar.Match(pattern, clean)
		if err == nil && match {
			return nil
		}
	}
	return &Violation{Rule: "allowed_file_globs", Message: "File access not allowed: " + path}
}

func (g *Guard) checkDangerous(command string) *Violation {
	if !g.policy.BlockDangerousCmd {
		return nil
	}
	normalized := strings.Join(strings.Fields(command), " ")
	for _, p := range dangerousPatterns {
		if strings.Contains(normalized, p) {
			return &Violation{Rule: "block_dangerous_cmd", Message: "Dangerous command blocked: " + command}
		}
	}
	return nil
}
