// Package session drives one end-to-end flashing session: transport open,
// Sahara handshake/loader upload, Firehose configure, optional vendor
// auth, task execution, and an optional final reboot — sequenced through a
// Phase enum the way the teacher's deployer sequenced its own workflow
// (§4.13).
package session

import (
	"fmt"

	"qflash/pkg/edl/auth"
	"qflash/pkg/edl/devicedb"
	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/elog"
	"qflash/pkg/edl/firehose"
	"qflash/pkg/edl/sahara"
	"qflash/pkg/edl/transport"
)

// Phase names one stage of a flash session, in execution order.
type Phase int

const (
	PhaseConnect Phase = iota
	PhaseSahara
	PhaseFirehoseConfigure
	PhaseAuth
	PhaseExecute
	PhaseReboot
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseConnect:
		return "connect"
	case PhaseSahara:
		return "sahara"
	case PhaseFirehoseConfigure:
		return "firehose-configure"
	case PhaseAuth:
		return "auth"
	case PhaseExecute:
		return "execute"
	case PhaseReboot:
		return "reboot"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PhaseObserver is notified on every phase transition, for UI/log wiring.
type PhaseObserver func(p Phase)

// Config describes how to run one session.
type Config struct {
	Mode            transport.Mode
	Loader          string
	MemoryName      string
	SectorSize      int
	Vendor          auth.Vendor
	AuthMaterials   auth.Materials
	RebootMode      string // "" skips the reboot phase
	LoaderResolver  sahara.LoaderResolver
}

// Result carries what was learned/produced over the session.
type Result struct {
	Pbl    *sahara.PblInfo
	Config firehose.Config
}

// Task is one unit of work run during PhaseExecute, given the negotiated
// Firehose client.
type Task func(c *firehose.Client) error

// FlashSession owns a transport for the session's lifetime.
type FlashSession struct {
	t        transport.Transport
	observer PhaseObserver
}

func New(t transport.Transport, observer PhaseObserver) *FlashSession {
	if observer == nil {
		observer = func(Phase) {}
	}
	return &FlashSession{t: t, observer: observer}
}

func (s *FlashSession) emit(p Phase) { s.observer(p) }

// Run executes the full sequence: connect, Sahara handshake, Firehose
// configure, vendor auth (if requested), the caller's tasks, and an
// optional reboot.
func (s *FlashSession) Run(cfg Config, deviceName string, tasks []Task) (*Result, error) {
	s.emit(PhaseConnect)
	if err := s.t.Open(deviceName); err != nil {
		return nil, edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}
	defer s.t.Close()

	s.emit(PhaseSahara)
	saharaClient := sahara.NewClient(s.t)
	hs, err := saharaClient.SmartHandshake(cfg.Loader, cfg.LoaderResolver)
	if _, isUserAction := err.(*sahara.RequiresUserActionError); isUserAction {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	elog.Session.Printf("sahara handshake complete, loader uploaded=%v", hs.LoaderUploaded)

	s.emit(PhaseFirehoseConfigure)
	fh := firehose.NewClient(s.t)
	memory := cfg.MemoryName
	sectorSize := cfg.SectorSize
	if memory == "" && hs.Pbl != nil {
		if ci, ok := devicedb.LookupChip(hs.Pbl.MsmID); ok {
			memory = string(ci.Storage)
		} else {
			memory = string(devicedb.StorageUFS)
		}
	}
	if err := fh.Configure(memory, sectorSize); err != nil {
		return nil, err
	}

	if cfg.Vendor != "" && cfg.Vendor != auth.VendorStandard {
		s.emit(PhaseAuth)
		if err := auth.Run(fh, cfg.Vendor, cfg.AuthMaterials); err != nil {
			return nil, err
		}
		// Re-configure: most devices re-evaluate storage init only after
		// authentication succeeds.
		if err := fh.Configure(memory, sectorSize); err != nil {
			return nil, err
		}
	}

	s.emit(PhaseExecute)
	for i, task := range tasks {
		if err := task(fh); err != nil {
			return nil, edlerr.Wrap(edlerr.KindProtocol, fmt.Sprintf("task-%d-failed", i), err)
		}
	}

	if cfg.RebootMode != "" {
		s.emit(PhaseReboot)
		if err := fh.Power(cfg.RebootMode); err != nil {
			return nil, err
		}
	}

	s.emit(PhaseDone)
	return &Result{Pbl: hs.Pbl, Config: fh.Config()}, nil
}
