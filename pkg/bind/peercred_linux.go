//go:build linux

package bind

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerCredsFromConn extracts SO_PEERCRED from a UNIX stream socket
// (spec.md §4.1 "peer credential capture").
func peerCredsFromConn(conn net.Conn) (peerCreds, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return peerCreds{}, nil
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return peerCreds{}, err
	}

	var cred *unix.Ucred
	var ctrlErr error
	err = raw.Control(func(fd uintptr) {
		cred, ctrlErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return peerCreds{}, err
	}
	if ctrlErr != nil {
		return peerCreds{}, ctrlErr
	}
	return peerCreds{UID: cred.Uid, GID: cred.Gid}, nil
}
