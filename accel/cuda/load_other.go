//go:build !linux

package cuda

func load() error {
	return ErrLibraryNotFound
}
