// Package task provides the small, named operations an operator surface
// (HTTP daemon, CLI, or a scripted batch) drives a flash session with:
// read/write/erase a partition, GPT backup/restore, a raw memory dump, and
// reboot — each expressed as a session.Task closure over a negotiated
// Firehose client (§4.13's FlashTaskExecutor facade).
package task

import (
	"os"

	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/firehose"
	"qflash/pkg/edl/partition"
	"qflash/pkg/edl/session"
)

// Executor resolves partition names against a Manager and builds the
// session.Task closures the caller schedules.
type Executor struct {
	Partitions *partition.Manager
	Progress   firehose.ProgressFunc
}

func NewExecutor(p *partition.Manager) *Executor {
	return &Executor{Partitions: p}
}

// ReadPartition dumps the named partition to outPath.
func (ex *Executor) ReadPartition(name string, lun int) session.Task {
	return func(c *firehose.Client) error {
		p, ok := ex.Partitions.Find(name, lun)
		if !ok {
			return edlerr.ErrFileNotFound
		}
		f, err := os.Create(p.Filename)
		if err != nil {
			return edlerr.Wrap(edlerr.KindIO, "file-not-found", err)
		}
		defer f.Close()
		return c.Read(p.LUN, p.StartSector, p.NumSectors, f, ex.Progress)
	}
}

// WritePartition programs sourcePath onto the named partition.
func (ex *Executor) WritePartition(name string, lun int, sourcePath string) session.Task {
	return func(c *firehose.Client) error {
		p, ok := ex.Partitions.Find(name, lun)
		if !ok {
			return edlerr.ErrFileNotFound
		}
		f, err := os.Open(sourcePath)
		if err != nil {
			return edlerr.Wrap(edlerr.KindIO, "file-not-found", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return edlerr.Wrap(edlerr.KindIO, "short-read", err)
		}
		return c.Write(p.LUN, p.StartSector, f, info.Size(), ex.Progress)
	}
}

// ErasePartition zero-length-erases the named partition's full extent.
func (ex *Executor) ErasePartition(name string, lun int) session.Task {
	return func(c *firehose.Client) error {
		p, ok := ex.Partitions.Find(name, lun)
		if !ok {
			return edlerr.ErrFileNotFound
		}
		return c.Erase(p.LUN, p.StartSector, p.NumSectors)
	}
}

// BackupGPT writes the LUN's primary GPT region to outPath.
func BackupGPT(lun int, outPath string) session.Task {
	return func(c *firehose.Client) error {
		f, err := os.Create(outPath)
		if err != nil {
			return edlerr.Wrap(edlerr.KindIO, "file-not-found", err)
		}
		defer f.Close()
		return c.BackupGPT(lun, f)
	}
}

// RestoreGPT programs a previously backed-up GPT region back onto lun.
func RestoreGPT(lun int, inPath string) session.Task {
	return func(c *firehose.Client) error {
		f, err := os.Open(inPath)
		if err != nil {
			return edlerr.Wrap(edlerr.KindIO, "file-not-found", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return edlerr.Wrap(edlerr.KindIO, "short-read", err)
		}
		return c.RestoreGPT(lun, f, info.Size())
	}
}

// DumpMemory peeks [addr, addr+size) to outPath.
func DumpMemory(addr, size uint64, outPath string) session.Task {
	return func(c *firehose.Client) error {
		f, err := os.Create(outPath)
		if err != nil {
			return edlerr.Wrap(edlerr.KindIO, "file-not-found", err)
		}
		defer f.Close()
		return c.DumpMemory(addr, size, f, nil)
	}
}

// Reboot issues a <power value="..."/> with the given mode. It is also
// reachable via session.Config.RebootMode for the common "reboot after
// everything else succeeded" case; this variant lets a caller reboot as an
// explicit mid-sequence task instead.
func Reboot(mode string) session.Task {
	return func(c *firehose.Client) error {
		return c.Power(mode)
	}
}
