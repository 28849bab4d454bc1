//go:build darwin

package lthread

import (
	"golang.org/x/sys/unix"
)

// createWakeFd creates a non-blocking pipe for compute-completion wake-ups
// (Darwin). Returns the read and write ends.
func createWakeFd() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = closeFD(fds[0])
			_ = closeFD(fds[1])
			return -1, -1, err
		}
	}
	return fds[0], fds[1], nil
}

// closeWakeFd closes both pipe ends.
func closeWakeFd(wakeFd, wakeWriteFd int) {
	if wakeFd >= 0 {
		_ = closeFD(wakeFd)
	}
	if wakeWriteFd >= 0 && wakeWriteFd != wakeFd {
		_ = closeFD(wakeWriteFd)
	}
}

// wakeSched signals the scheduler owning the write end. Called by compute
// workers from their own OS threads; serialisation is the kernel's.
func wakeSched(wakeWriteFd int) error {
	_, err := writeFD(wakeWriteFd, []byte{1})
	return err
}
