package output

import (
	"testing"

	"github.com/platformsh/platform-cli/internal/ui"
	"github.com/stretchr/testify/assert"
)

func TestGenericFormatterProcessLineNormal(t *testing.T) {
	ui.DisableColors()
	f := NewGenericFormatter()

	for _, line := range []string{
		"Loading composer repositories with package information",
		"Making project.make",
		"",
	} {
		assert.Equal(t, line, f.ProcessLine(line))
	}
}

func TestIsErrorLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"error: file not found", true},
		{"Error: connection failed", true},
		{"  Fatal: crash", true},
		{"PHP Fatal error:  Allowed memory size exhausted", true},
		{"Something ERROR happened", true},
		{"exception: null pointer", true},
		{"No errors found", false},
		{"Generating autoload files", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, isErrorLine(tt.line))
		})
	}
}

func TestFormatterText(t *testing.T) {
	// Styles only add ANSI codes; with colors off the text is unchanged.
	ui.DisableColors()

	lines := []string{
		"  - Installing doctrine/orm (v2.5.0)",
		"  Problem 1",
		"  [RuntimeException]",
		"Package foo/bar is abandoned, you should avoid using it.",
		"Project dkan contains 3 modules: views, ctools, panels.",
		"Unable to download foo.                                  [error]",
		"foo downloaded.                                          [ok]",
	}
	for _, f := range []Formatter{NewGenericFormatter(), NewComposerFormatter(), NewDrushFormatter()} {
		for _, line := range lines {
			assert.Equal(t, line, f.ProcessLine(line), "%s: %q", f.Name(), line)
		}
	}
}

func TestForTool(t *testing.T) {
	assert.Equal(t, "composer", ForTool("composer").Name())
	assert.Equal(t, "drush", ForTool("drush").Name())
	assert.Equal(t, "generic", ForTool("git").Name())
	assert.Equal(t, "generic", ForTool("").Name())
}

func TestIndentFormatter(t *testing.T) {
	ui.DisableColors()
	f := &IndentFormatter{Inner: NewDrushFormatter(), Prefix: "  "}

	assert.Equal(t, "drush", f.Name())
	assert.Equal(t, "  Making project.make", f.ProcessLine("Making project.make"))
	assert.Equal(t, "", f.ProcessLine("   "))
}
