//go:build linux || darwin

package transport

import (
	"os"

	"golang.org/x/sys/unix"
)

// applySerialSettings puts the port in raw 8-N-1 mode and asserts DTR/RTS,
// matching §4.1/§6 ("8-N-1; DTR/RTS asserted"). Baud is set best-effort;
// USB-CDC ACM devices ignore it entirely.
func applySerialSettings(f *os.File, baud int) error {
	fd := int(f.Fd())

	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		// Not every backing fd is a tty (e.g. a plain file used in tests);
		// treat that as a no-op rather than a hard failure.
		return nil
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	if rate, ok := baudConst(baud); ok {
		t.Ispeed = rate
		t.Ospeed = rate
	}

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, t); err != nil {
		return err
	}

	return assertDTRRTS(fd)
}

func assertDTRRTS(fd int) error {
	bits := unix.TIOCM_DTR | unix.TIOCM_RTS
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, bits)
}

func baudConst(baud int) (uint32, bool) {
	switch baud {
	case 115200:
		return unix.B115200, true
	case 57600:
		return unix.B57600, true
	case 9600:
		return unix.B9600, true
	default:
		return 0, false
	}
}
