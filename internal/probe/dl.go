//go:build darwin || linux

package probe

import (
	"github.com/ebitengine/purego"
)

type dlLibrary struct {
	handle uintptr
}

func openLibrary(path string) (library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, err
	}
	return &dlLibrary{handle: handle}, nil
}

func (l *dlLibrary) has(symbol string) bool {
	addr, err := purego.Dlsym(l.handle, symbol)
	return err == nil && addr != 0
}

func (l *dlLibrary) close() error {
	return purego.Dlclose(l.handle)
}
