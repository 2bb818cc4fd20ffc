//go:build !darwin && !linux

package probe

func openLibrary(string) (library, error) {
	return nil, errUnsupportedHost
}
