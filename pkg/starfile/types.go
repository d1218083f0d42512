package starfile

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"
)

// ShellCmd is a single shell snippet attached to a target.
type ShellCmd struct {
	TargetName string
	Content    string
	Index      int
}

func (c ShellCmd) RefTarget() *Target {
	return nil
}

func (c ShellCmd) ShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	reader := strings.NewReader(c.Content)
	result, err := parser.Parse(reader, fmt.Sprintf("%s:%d", c.TargetName, c.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", c.Content)
	}

	return result.Stmts, nil
}

// TargetRef embeds another target into a target's command list.
type TargetRef struct {
	Target *Target
}

func (r TargetRef) RefTarget() *Target {
	return r.Target
}

func (r TargetRef) ShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

// Command is either a shell snippet or a reference to another target.
// RefTarget returns nil for shell snippets, ShellStmts returns nil for
// target references.
type Command interface {
	RefTarget() *Target
	ShellStmts(*syntax.Parser) ([]*syntax.Stmt, error)
}

// Target contains the processed values passed to target() by the script
type Target struct {
	Env          map[string]string
	Short        string
	Desc         string
	Base         string
	Inputs       []string
	Deps         []string
	SkipIfExists []string
	Outputs      []string
	Cmds         []Command
	Hidden       bool
}

// TargetList maps short names to each declared target
type TargetList map[string]*Target

// Option is a script option declared with option()
type Option struct {
	DefaultValue starlark.String
	Help         string
}

func (o Option) Default() string {
	return o.DefaultValue.GoString()
}

// Implement starlark.Value for *Target

// String returns a string representation of the target
func (t *Target) String() string {
	return fmt.Sprintf("<Target %s: %s>", t.Short, t.Desc)
}

// Type always returns "target" to indicate this type
func (t *Target) Type() string {
	return "target"
}

// Freeze doesn't do anything since targets are immutable anyway
func (t *Target) Freeze() {}

// Truth always returns true since a target can't be nil or None
func (t *Target) Truth() starlark.Bool {
	return starlark.True
}

// Hash always returns an error since targets aren't hashable
func (t *Target) Hash() (uint32, error) {
	return 0, eris.New("target is not a hashable type")
}

// Path is a filesystem path produced by resolve_path(); it behaves like a
// string inside the script but is normalized relative to the target base
// when used in a command.
type Path string

func (p Path) String() string {
	return starlark.String(p).String()
}

func (p Path) Type() string {
	return "path"
}

func (p Path) Freeze() {}

func (p Path) Truth() starlark.Bool {
	return p != ""
}

func (p Path) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p Path) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(Path)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p Path) Index(i int) starlark.Value {
	return starlark.String(p[i])
}

func (p Path) Len() int {
	return len(p)
}

func (p Path) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}
