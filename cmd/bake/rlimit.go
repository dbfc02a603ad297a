package main

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// bumpRlimitNOFILE raises the open-file-descriptor limit to the kernel
// maximum. foreach holds the install tree's copy-tree fan-out
// (install.CopyTree's errgroup) open across many projects in sequence, so
// the default 1024 soft limit runs out well before a large tree finishes.
// Lifted from the teacher's rlimit.go unchanged bar ioutil -> os.
func bumpRlimitNOFILE() error {
	// The smaller of the two is the highest which Linux will let us set:
	// https://github.com/torvalds/linux/blob/2be7d348fe924f0c5583c6a805bd42cecda93104/kernel/sys.c#L1526-L1541
	var fileMax, nrOpen uint64
	{
		b, err := os.ReadFile("/proc/sys/fs/file-max")
		if err != nil {
			return err
		}
		fileMax, err = strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
		if err != nil {
			return err
		}
	}
	{
		b, err := os.ReadFile("/proc/sys/fs/nr_open")
		if err != nil {
			return err
		}
		nrOpen, err = strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
		if err != nil {
			return err
		}
	}
	max := fileMax
	if nrOpen < max {
		max = nrOpen
	}
	set := unix.Rlimit{Max: max, Cur: max}
	return unix.Setrlimit(unix.RLIMIT_NOFILE, &set)
}
