// Package manifest parses nbuild manifests. A manifest is a list of
// lines grouped under ".section" headers:
//
//	# boot code, stacked in order
//	.asm
//	src/boot.asm
//	src/stage2.asm --no-append
//	.fs
//	build/krnl.bin>kernel.bin
//	.initrd
//	initrd
//
// Lines before the first header belong to the asm section.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	SectionAsm        = "asm"
	SectionBin        = "bin"
	SectionC          = "c"
	SectionFS         = "fs"
	SectionInitrd     = "initrd"
	SectionAfterBuild = "after-build"

	NoAppendFlag = "--no-append"
)

var singleValued = map[string]bool{
	SectionInitrd:     true,
	SectionAfterBuild: true,
}

var known = map[string]bool{
	SectionAsm:        true,
	SectionBin:        true,
	SectionC:          true,
	SectionFS:         true,
	SectionInitrd:     true,
	SectionAfterBuild: true,
}

// Error is a manifest problem tied to a line.
type Error struct {
	Path string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

type CodeKind int

const (
	// CodeAsm sources are assembled to a raw blob.
	CodeAsm CodeKind = iota
	// CodeBin files are already raw blobs.
	CodeBin
)

// Code is a raw code blob in manifest order. Stack reports whether the
// blob is appended to the image or kept as a standalone artifact.
type Code struct {
	Path  string
	Kind  CodeKind
	Stack bool
	Line  int
}

type Source struct {
	Path string
	Line int
}

// File is a payload copied into the embedded filesystem under Dest.
type File struct {
	Source string
	Dest   string
	Line   int
}

type Manifest struct {
	Path       string
	Code       []Code
	C          []Source
	FS         []File
	Initrd     string
	AfterBuild []string
}

func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening manifest")
	}
	defer f.Close()
	return Parse(f, path)
}

func Parse(r io.Reader, path string) (*Manifest, error) {
	m := &Manifest{
		Path: path,
	}
	p := &parser{
		m:       m,
		section: SectionAsm,
		seen:    make(map[string]bool),
	}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := p.line(lineNo, scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading manifest")
	}
	return m, nil
}

type parser struct {
	m       *Manifest
	section string
	seen    map[string]bool
	values  int
}

func (p *parser) errorf(line int, format string, args ...interface{}) error {
	return &Error{
		Path: p.m.Path,
		Line: line,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *parser) line(no int, raw string) error {
	line := strings.TrimRight(raw, " \t\r")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if strings.HasPrefix(line, ".") {
		return p.header(no, line[1:])
	}

	switch p.section {
	case SectionAsm:
		return p.asm(no, line)
	case SectionBin:
		p.m.Code = append(p.m.Code, Code{
			Path:  strings.TrimSpace(line),
			Kind:  CodeBin,
			Stack: true,
			Line:  no,
		})
	case SectionC:
		p.m.C = append(p.m.C, Source{
			Path: strings.TrimSpace(line),
			Line: no,
		})
	case SectionFS:
		return p.fs(no, line)
	case SectionInitrd:
		if p.values > 0 {
			return p.errorf(no, "section %q takes a single value", SectionInitrd)
		}
		p.m.Initrd = strings.TrimSpace(line)
	case SectionAfterBuild:
		p.m.AfterBuild = append(p.m.AfterBuild, line)
	default:
		return p.errorf(no, "data in invalid section %q", p.section)
	}
	p.values++
	return nil
}

func (p *parser) header(no int, name string) error {
	name = strings.TrimSpace(name)
	if !known[name] {
		return p.errorf(no, "invalid section %q", name)
	}
	if singleValued[name] && p.seen[name] {
		return p.errorf(no, "duplicate section %q", name)
	}
	p.seen[name] = true
	p.section = name
	p.values = 0
	return nil
}

func (p *parser) asm(no int, line string) error {
	fields := strings.Fields(line)
	code := Code{
		Path:  fields[0],
		Kind:  CodeAsm,
		Stack: true,
		Line:  no,
	}
	for _, flag := range fields[1:] {
		if flag != NoAppendFlag {
			return p.errorf(no, "unknown flag %q", flag)
		}
		code.Stack = false
	}
	p.m.Code = append(p.m.Code, code)
	p.values++
	return nil
}

func (p *parser) fs(no int, line string) error {
	parts := strings.Split(line, ">")
	if len(parts) != 2 {
		return p.errorf(no, "expected <source>><destination>, got %q", line)
	}
	src := strings.TrimSpace(parts[0])
	dest := strings.TrimSpace(parts[1])
	if src == "" || dest == "" {
		return p.errorf(no, "expected <source>><destination>, got %q", line)
	}
	p.m.FS = append(p.m.FS, File{
		Source: src,
		Dest:   dest,
		Line:   no,
	})
	p.values++
	return nil
}

// Stacked returns the code blobs appended to the image, in load order.
func (m *Manifest) Stacked() []Code {
	var out []Code
	for _, c := range m.Code {
		if c.Stack {
			out = append(out, c)
		}
	}
	return out
}
