package doctor

import (
	"fmt"
	"sort"

	"github.com/platformsh/platform-cli/internal/config"
	"github.com/platformsh/platform-cli/internal/exec"
	"github.com/platformsh/platform-cli/internal/require"
	"github.com/platformsh/platform-cli/internal/toolstack"
)

// ToolCheck verifies that a build tool is on PATH. A missing tool fails
// when some application needs it and only warns otherwise.
type ToolCheck struct {
	Tool     string
	Runner   exec.Runner
	Required bool
}

func (c *ToolCheck) Name() string     { return "tool_" + c.Tool }
func (c *ToolCheck) Category() string { return CategoryTools }

func (c *ToolCheck) Run() CheckResult {
	// A fresh checker, so a rerun after --fix sees newly installed tools.
	found := require.NewChecker(c.Runner).Check(c.Tool)
	if found.Satisfied {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s: %s", c.Tool, found.Path),
		}
	}

	status := StatusWarn
	msg := fmt.Sprintf("%s not found", c.Tool)
	suggestion := fmt.Sprintf("Install '%s' and make sure it is on your PATH.", c.Tool)
	if hint, ok := exec.Hint(c.Tool); ok {
		msg = fmt.Sprintf("%s not found (needed for %s)", c.Tool, hint.Purpose)
		suggestion = hint.Install
	}
	if c.Required {
		status = StatusFail
	}
	return CheckResult{
		Status:     status,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// Fix cannot install tools.
func (c *ToolCheck) Fix() error { return nil }

// NewToolChecks checks every tool with a known install hint. Tools listed
// in required fail when missing.
func NewToolChecks(runner exec.Runner, required []string) []Check {
	need := make(map[string]bool, len(required))
	for _, t := range required {
		need[t] = true
	}

	var checks []Check
	for _, tool := range exec.KnownTools() {
		checks = append(checks, &ToolCheck{Tool: tool, Runner: runner, Required: need[tool]})
		delete(need, tool)
	}
	// Requirements without a hint still get checked.
	for _, tool := range required {
		if need[tool] {
			checks = append(checks, &ToolCheck{Tool: tool, Runner: runner, Required: true})
			delete(need, tool)
		}
	}
	return checks
}

// RequiredTools collects the executables the toolstacks of appRoots shell
// out to. Applications whose config is broken or whose toolstack can't be
// resolved are left out; the build reports those itself.
func RequiredTools(reg *toolstack.Registry, appRoots []string) []string {
	seen := make(map[string]bool)
	for _, root := range appRoots {
		cfg, err := config.LoadApp(root)
		if err != nil {
			continue
		}
		ts, err := reg.Resolve(root, cfg.Toolstack)
		if err != nil || ts == nil {
			continue
		}
		for _, tool := range ts.Requirements() {
			seen[tool] = true
		}
	}

	tools := make([]string, 0, len(seen))
	for tool := range seen {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	return tools
}
