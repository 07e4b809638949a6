// Package skills loads workspace-rooted skill definitions — a SKILL.md per
// directory under workspace/skills/ — and dispatches run_skill invocations
// either to a subprocess or, for wasm-mode skills, into the skillrt
// sandbox.
package skills

// Mode selects how run_skill dispatches a skill. Any value other than
// ModeWasm degrades to subprocess execution.
type Mode string

const (
	ModeSubprocess Mode = "subprocess"
	ModeWasm       Mode = "wasm"
)

// Metadata is the optional YAML frontmatter block at the top of a SKILL.md.
type Metadata struct {
	Image       string `yaml:"image"`
	Description string `yaml:"description"`
	Mode        Mode   `yaml:"mode"`
}

// EffectiveMode normalizes Mode, degrading anything other than "wasm" to
// subprocess.
func (m Metadata) EffectiveMode() Mode {
	if m.Mode == ModeWasm {
		return ModeWasm
	}
	return ModeSubprocess
}
