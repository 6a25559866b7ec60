package enclave

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flashbots/pctmatch/protocol"
	"github.com/flashbots/pctmatch/tdx"
)

var _ tdx.Provider = (*tamperingProvider)(nil)

// tamperingProvider returns evidence for different report data than requested.
type tamperingProvider struct {
	tdx.DummyProvider
}

func (p *tamperingProvider) Attest(reportData [64]byte) ([]byte, error) {
	reportData[0] ^= 0xff
	return p.DummyProvider.Attest(reportData)
}

func TestAttestedBindsSession(t *testing.T) {
	cfg := plainConfig(protocol.ModeGeotemporal)
	b, err := NewAttested(cfg, &tdx.DummyProvider{}, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	digest, err := SessionDigest(cfg, b.InstanceID())
	require.NoError(t, err)
	require.Equal(t, digest[:], b.Evidence())
	require.Len(t, b.Measurements(), 5)

	data := geotemporalRecords(t, 1550, tokenT1)
	require.NoError(t, b.UploadQueries(data, []protocol.QueryID{42}, []uint32{1}))
	require.NoError(t, b.SubmitDictionaryChunk(protocol.EncodeGeotemporalChunk([]protocol.DictionaryEntry{
		{Token: tokenT1, Timestamps: []protocol.Timestamp{1000, 1700}},
	})))
	out := make([]byte, protocol.ResponseRecordSize)
	require.NoError(t, b.FetchResponse(out))
	require.Equal(t, byte(1), out[protocol.QueryIDSize])
}

func TestAttestedRejectsBadEvidence(t *testing.T) {
	_, err := NewAttested(plainConfig(protocol.ModeExact), &tamperingProvider{}, zap.NewNop())
	require.True(t, errors.Is(err, protocol.ErrInitialization), err)

	var callErr *CallError
	require.True(t, errors.As(err, &callErr))
	require.Equal(t, StatusAttestationFailed, callErr.Status)
}

func TestSessionDigestDependsOnConfig(t *testing.T) {
	id := []byte("instance")
	a, err := SessionDigest(plainConfig(protocol.ModeExact), id)
	require.NoError(t, err)
	b, err := SessionDigest(plainConfig(protocol.ModeGeotemporal), id)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
