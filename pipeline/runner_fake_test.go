package pipeline

import (
	"context"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// fakeRunner stands in for the external toolchain. "asm" and "cc" copy
// their input to their output, "ld" concatenates objects and "sh" only
// records the script it was given.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if f.fail != "" && strings.Contains(strings.Join(append([]string{name}, args...), " "), f.fail) {
		return []byte("fatal error"), errors.New("exit status 1")
	}
	switch name {
	case "asm", "cc":
		data, err := ioutil.ReadFile(args[0])
		if err != nil {
			return nil, err
		}
		return nil, ioutil.WriteFile(args[1], data, 0644)
	case "ld":
		var out []byte
		for _, obj := range args[1:] {
			data, err := ioutil.ReadFile(obj)
			if err != nil {
				return nil, err
			}
			out = append(out, data...)
		}
		return nil, ioutil.WriteFile(args[0], out, 0644)
	}
	return nil, nil
}

func (f *fakeRunner) commands(name string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] == name {
			out = append(out, c)
		}
	}
	return out
}
