package enclave

import (
	"encoding/hex"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/flashbots/pctmatch/protocol"
	"github.com/flashbots/pctmatch/tdx"
)

// Attested is the production boundary. Initialization obtains a quote whose
// report data binds the session configuration and instance, verifies it,
// and refuses to start otherwise.
//
// The engine shares an address space with the orchestrator. The quote
// proves what runs in the trust domain and shields it from the hypervisor,
// but it does not isolate the engine from the host code in the same
// process. The trust boundary is therefore the VM edge: the whole job,
// orchestrator included, must run inside the attested trust domain, and
// only the inputs and the response cross into it.
type Attested struct {
	*InProcess

	attestationType string
	evidence        []byte
	measurements    map[int][]byte
}

// NewAttested initializes the boundary and attests it with provider.
func NewAttested(cfg protocol.MatchConfig, provider tdx.Provider, log *zap.Logger) (*Attested, error) {
	inner, err := NewInProcess(cfg)
	if err != nil {
		return nil, err
	}

	reportData, err := SessionDigest(cfg, inner.instanceID)
	if err != nil {
		inner.Close()
		return nil, errors.Mark(err, protocol.ErrInitialization)
	}

	evidence, err := provider.Attest(reportData)
	if err != nil {
		inner.Close()
		return nil, errors.Mark(&CallError{Op: OpInitialize, Status: StatusAttestationFailed, Cause: err}, protocol.ErrInitialization)
	}

	measurements, err := provider.Verify(evidence, reportData)
	if err != nil {
		inner.Close()
		return nil, errors.Mark(&CallError{Op: OpInitialize, Status: StatusAttestationFailed, Cause: err}, protocol.ErrInitialization)
	}

	log.Info("Boundary attested",
		zap.String("attestationType", provider.AttestationType()),
		zap.String("instanceID", hex.EncodeToString(inner.instanceID)),
		zap.String("mrtd", hex.EncodeToString(measurements[0])),
		zap.Int("evidenceBytes", len(evidence)),
	)

	return &Attested{
		InProcess:       inner,
		attestationType: provider.AttestationType(),
		evidence:        evidence,
		measurements:    measurements,
	}, nil
}

// Evidence returns the raw attestation produced at initialization.
func (a *Attested) Evidence() []byte {
	return append([]byte(nil), a.evidence...)
}

// Measurements returns the verified measurement registers by index.
func (a *Attested) Measurements() map[int][]byte {
	return a.measurements
}

// SessionDigest is the attestation report data for a session: SHA3-512
// over a domain tag, the canonical JSON of cfg and the instance id.
func SessionDigest(cfg protocol.MatchConfig, instanceID []byte) ([64]byte, error) {
	var digest [64]byte
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return digest, errors.Wrap(err, "encode match config")
	}
	h := sha3.New512()
	h.Write([]byte("pctmatch-session-v1"))
	h.Write(encoded)
	h.Write(instanceID)
	copy(digest[:], h.Sum(nil))
	return digest, nil
}
