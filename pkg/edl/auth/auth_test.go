package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/firehose"
)

func TestRunRejectsUnknownVendor(t *testing.T) {
	err := Run(nil, Vendor("made-up"), Materials{})
	require.ErrorIs(t, err, edlerr.ErrUnsupportedAuth)
}

func TestOppoStrategyRequiresMaterials(t *testing.T) {
	s := oppoVIPStrategy{}
	err := s.Authenticate(nil, Materials{})
	require.ErrorIs(t, err, edlerr.ErrMissingVIPFiles)
}

func TestStandardStrategyIsNoop(t *testing.T) {
	s := standardStrategy{}
	require.NoError(t, s.Authenticate((*firehose.Client)(nil), Materials{}))
}

func TestRegistryCoversAllVendors(t *testing.T) {
	r := Registry()
	for _, v := range []Vendor{VendorStandard, VendorOppoVIP, VendorXiaomi, VendorNothing} {
		_, ok := r[v]
		require.True(t, ok, "missing strategy for %s", v)
	}
}
