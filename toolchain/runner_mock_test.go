package toolchain

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type RunnerMock struct {
	mock.Mock
}

func (r *RunnerMock) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	called := r.Called(append([]string{name}, args...))
	var out []byte
	if b := called.Get(0); b != nil {
		out = b.([]byte)
	}
	return out, called.Error(1)
}
