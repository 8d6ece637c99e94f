package container

import (
	"path/filepath"
	"sync"

	"github.com/wasd845/AVGraphics/internal/media"
)

type claimKind string

const (
	claimOutput claimKind = "output"
	claimInput  claimKind = "input"
)

var claims = struct {
	sync.Mutex
	held map[claimKind]map[string]struct{}
}{
	held: map[claimKind]map[string]struct{}{
		claimOutput: {},
		claimInput:  {},
	},
}

// claim reserves path for the process. The returned release is idempotent.
func claim(op string, kind claimKind, path string) (string, func(), error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, media.IOError(op, err, "resolve %s", path)
	}

	claims.Lock()
	defer claims.Unlock()
	if _, busy := claims.held[kind][abs]; busy {
		return "", nil, media.IOError(op, nil, "%s %s is already in use", kind, abs)
	}
	claims.held[kind][abs] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			claims.Lock()
			delete(claims.held[kind], abs)
			claims.Unlock()
		})
	}
	return abs, release, nil
}

// Claimed reports whether path is currently held as an output or input.
func Claimed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	claims.Lock()
	defer claims.Unlock()
	_, out := claims.held[claimOutput][abs]
	_, in := claims.held[claimInput][abs]
	return out || in
}
