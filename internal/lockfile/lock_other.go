//go:build !unix && !windows

package lockfile

import "os"

// No advisory locking here; such targets run a single process.
func flockExclusiveNonBlocking(f *os.File) error { return nil }

func flockUnlock(f *os.File) error { return nil }
