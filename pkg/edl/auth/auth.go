// Package auth orchestrates the vendor-specific authentication handshakes
// a Firehose session may need before configure/program will proceed:
// OPPO VIP, Xiaomi Demacia/SetProjModel, and Nothing checkntfeature
// (§4.4's auth orchestrator, generalizing the teacher's strategy-flag
// dispatch into an interface of named Strategy implementations).
package auth

import (
	"encoding/hex"

	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/firehose"
)

// Vendor names which strategy to run.
type Vendor string

const (
	VendorStandard Vendor = "standard"
	VendorOppoVIP  Vendor = "oppo_vip"
	VendorXiaomi   Vendor = "xiaomi"
	VendorNothing  Vendor = "nothing"
)

// Materials bundles whatever credential files/bytes a strategy may need;
// strategies ignore fields they don't use.
type Materials struct {
	VIPDigest    []byte
	VIPSignature []byte
	ProjModel    string
	DemaciaAuth  []byte
	FeatureToken []byte

	RequireStepACK bool // device quirk toggle, §9 Open Question resolution
}

// Strategy performs one vendor's authentication exchange against an
// already-configured Firehose client.
type Strategy interface {
	Vendor() Vendor
	Authenticate(c *firehose.Client, m Materials) error
}

// Registry maps Vendor to its Strategy, generalizing the teacher's
// useIOCTL/useUSB/useCGMiner/useKernel flag dispatch into a lookup table.
func Registry() map[Vendor]Strategy {
	return map[Vendor]Strategy{
		VendorStandard: standardStrategy{},
		VendorOppoVIP:  oppoVIPStrategy{},
		VendorXiaomi:   xiaomiStrategy{},
		VendorNothing:  nothingStrategy{},
	}
}

// Run resolves and executes the named vendor's strategy.
func Run(c *firehose.Client, vendor Vendor, m Materials) error {
	strategy, ok := Registry()[vendor]
	if !ok {
		return edlerr.ErrUnsupportedAuth
	}
	return strategy.Authenticate(c, m)
}

type standardStrategy struct{}

func (standardStrategy) Vendor() Vendor { return VendorStandard }
func (standardStrategy) Authenticate(c *firehose.Client, m Materials) error {
	return nil // devices with no vendor gate accept configure directly
}

type oppoVIPStrategy struct{}

func (oppoVIPStrategy) Vendor() Vendor { return VendorOppoVIP }
func (oppoVIPStrategy) Authenticate(c *firehose.Client, m Materials) error {
	if len(m.VIPDigest) == 0 || len(m.VIPSignature) == 0 {
		return edlerr.ErrMissingVIPFiles
	}
	return c.VIPExchange(m.VIPDigest, m.VIPSignature, m.RequireStepACK)
}

type xiaomiStrategy struct{}

func (xiaomiStrategy) Vendor() Vendor { return VendorXiaomi }
func (xiaomiStrategy) Authenticate(c *firehose.Client, m Materials) error {
	if len(m.DemaciaAuth) == 0 {
		return edlerr.ErrMissingVIPFiles
	}
	if err := c.Poke(0, uint64(len(m.DemaciaAuth)), hex.EncodeToString(m.DemaciaAuth)); err != nil {
		return err
	}
	if m.ProjModel != "" {
		if err := c.SetBootableStorageDrive(0); err != nil {
			return err
		}
	}
	return nil
}

type nothingStrategy struct{}

func (nothingStrategy) Vendor() Vendor { return VendorNothing }
func (nothingStrategy) Authenticate(c *firehose.Client, m Materials) error {
	if len(m.FeatureToken) == 0 {
		return edlerr.ErrMissingVIPFiles
	}
	if err := c.Poke(0, uint64(len(m.FeatureToken)), hex.EncodeToString(m.FeatureToken)); err != nil {
		return err
	}
	return nil
}
