package utils

import (
	"errors"
	"os"
	"path"

	"github.com/Trinoooo/eggie_net/errs"
)

// EnsureParentDir 确保 filePath 所在目录存在，不存在时创建
func EnsureParentDir(filePath string) error {
	dir, _ := path.Split(filePath)
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err = os.MkdirAll(dir, 0770); err != nil {
			return errs.NewMkdirErr().WithErr(err)
		}
		return nil
	}
	if err != nil {
		return errs.NewFileStatErr().WithErr(err)
	}
	if !info.IsDir() {
		return errs.NewMkdirErr().WithErr(os.ErrExist)
	}
	return nil
}
