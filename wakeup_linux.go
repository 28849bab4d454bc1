//go:build linux

package lthread

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates an eventfd for compute-completion wake-ups (Linux).
// Returns the single eventfd as both read and write ends.
func createWakeFd() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}

// closeWakeFd closes the wake eventfd.
func closeWakeFd(wakeFd, wakeWriteFd int) {
	if wakeFd >= 0 {
		_ = closeFD(wakeFd)
	}
}

// wakeSched signals the scheduler owning the write end. Called by compute
// workers from their own OS threads; serialisation is the kernel's.
func wakeSched(wakeWriteFd int) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := writeFD(wakeWriteFd, buf[:])
	return err
}
