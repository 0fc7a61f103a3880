package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

func ExpandPath(path string) string {
	res, err := homedir.Expand(path)
	if err != nil {
		panic(err)
	}
	return res
}

// BuildPath joins name onto the expanded build directory.
func (c *Config) BuildPath(name string) string {
	return filepath.Join(ExpandPath(c.BuildDir), name)
}

func (c *Config) ImagePath() string {
	return c.BuildPath(c.Image.File)
}

func (c *Config) InitrdPath() string {
	return c.BuildPath(c.Initrd.File)
}

func (c *Config) ExecutablePath() string {
	return c.BuildPath(c.Toolchain.Executable)
}

func InitBuildDir(c *Config) error {
	return os.MkdirAll(ExpandPath(c.BuildDir), 0755)
}

func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, errors.Errorf("%s is a directory", path)
	}
	return true, nil
}
