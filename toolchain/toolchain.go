// Package toolchain drives the external assembler, compiler, linker and
// shell used by a build.
package toolchain

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"nbuild/log"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	StageAssemble   = "assemble"
	StageCompile    = "compile"
	StageLink       = "link"
	StageImage      = "image"
	StageAfterBuild = "after-build"
)

var ErrEmptyCommand = errors.New("empty command")

// ExitError is returned when an external command fails.
type ExitError struct {
	Stage   string
	Command []string
	Output  []byte
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Stage, strings.Join(e.Command, " "), e.Err)
	if out := strings.TrimSpace(string(e.Output)); out != "" {
		msg += "\n" + out
	}
	return msg
}

type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as child processes and returns their combined
// output.
type ExecRunner struct {
	Dir string
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	return cmd.CombinedOutput()
}

// Expand splits tmpl on whitespace and substitutes {key} placeholders. A
// field that is exactly one placeholder expands to every value of that
// key; placeholders inside a longer field are replaced by the values
// joined with spaces.
func Expand(tmpl string, vars map[string][]string) []string {
	var out []string
	for _, field := range strings.Fields(tmpl) {
		if vals, ok := vars[placeholderKey(field)]; ok {
			out = append(out, vals...)
			continue
		}
		out = append(out, replaceAll(field, vars))
	}
	return out
}

// ExpandString substitutes placeholders in a shell command line.
func ExpandString(tmpl string, vars map[string][]string) string {
	return replaceAll(tmpl, vars)
}

func placeholderKey(field string) string {
	if len(field) > 2 && field[0] == '{' && field[len(field)-1] == '}' {
		return field[1 : len(field)-1]
	}
	return ""
}

func replaceAll(s string, vars map[string][]string) string {
	for k, v := range vars {
		s = strings.Replace(s, "{"+k+"}", strings.Join(v, " "), -1)
	}
	return s
}

type Toolchain struct {
	Runner    Runner
	Assembler string
	Compiler  string
	Opt       string
	Linker    string
	Shell     string
	Workers   int
	lgr       log.Logger
}

func New(runner Runner) *Toolchain {
	return &Toolchain{
		Runner:  runner,
		Shell:   "sh",
		Workers: 1,
		lgr:     log.WithModule("toolchain"),
	}
}

func (t *Toolchain) run(ctx context.Context, stage string, argv []string) error {
	if len(argv) == 0 {
		return errors.Wrapf(ErrEmptyCommand, "stage %s", stage)
	}
	t.lgr.Debug("executing", "stage", stage, "cmd", strings.Join(argv, " "))
	out, err := t.Runner.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return &ExitError{
			Stage:   stage,
			Command: argv,
			Output:  out,
			Err:     err,
		}
	}
	return nil
}

func (t *Toolchain) Assemble(ctx context.Context, src string, out string) error {
	t.lgr.Info("assembling", "src", src, "out", out)
	argv := Expand(t.Assembler, map[string][]string{
		"in":  {src},
		"out": {out},
	})
	return t.run(ctx, StageAssemble, argv)
}

// Compile compiles srcs[i] to objs[i] using up to Workers concurrent
// processes. The first failure cancels the remaining compilations.
func (t *Toolchain) Compile(ctx context.Context, srcs []string, objs []string) error {
	if len(srcs) != len(objs) {
		return errors.New("source and object counts differ")
	}
	g, ctx := errgroup.WithContext(ctx)
	workers := t.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := range srcs {
		src, obj := srcs[i], objs[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t.lgr.Info("compiling", "src", src)
			argv := Expand(t.Compiler, map[string][]string{
				"in":  {src},
				"out": {obj},
				"opt": strings.Fields(t.Opt),
			})
			return t.run(ctx, StageCompile, argv)
		})
	}
	return g.Wait()
}

func (t *Toolchain) Link(ctx context.Context, objs []string, out string) error {
	t.lgr.Info("linking", "out", out, "objects", len(objs))
	argv := Expand(t.Linker, map[string][]string{
		"objs": objs,
		"out":  {out},
	})
	return t.run(ctx, StageLink, argv)
}

// RunScript runs script with the configured shell.
func (t *Toolchain) RunScript(ctx context.Context, stage string, script string) error {
	return t.run(ctx, stage, []string{t.Shell, "-c", script})
}
