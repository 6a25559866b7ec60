// Package tdx provides attestation for the matching boundary when it runs
// inside an Intel TDX trust domain.
package tdx

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-tdx-guest/abi"
	"github.com/google/go-tdx-guest/client"
	proto_checkconfig "github.com/google/go-tdx-guest/proto/checkconfig"
	proto "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/validate"
	"github.com/google/go-tdx-guest/verify"
)

// Provider produces a quote over 64 bytes of report data and verifies
// quotes, returning the measurement registers (0 = MRTD, 1..4 = RTMRs).
type Provider interface {
	AttestationType() string
	Attest(reportData [64]byte) ([]byte, error)
	Verify(attestationReport []byte, expectedReportData [64]byte) (map[int][]byte, error)
}

// NewProvider selects a provider: the local TDX device, a remote quote
// service when remoteURL is set, or DummyProvider when useTDX is false.
func NewProvider(useTDX bool, remoteURL string) Provider {
	if !useTDX {
		return &DummyProvider{}
	}
	if remoteURL != "" {
		return &RemoteDCAPProvider{URL: remoteURL, Timeout: 30 * time.Second}
	}
	return &TDXProvider{}
}

// TDXProvider quotes through the local configfs-tsm interface.
type TDXProvider struct{}

func (p *TDXProvider) AttestationType() string {
	return "dcap-tdx"
}

// Attest generates a TDX quote binding the report data.
func (p *TDXProvider) Attest(reportData [64]byte) ([]byte, error) {
	qp := &client.LinuxConfigFsQuoteProvider{}
	return qp.GetRawQuote(reportData)
}

func (p *TDXProvider) Verify(attestationReport []byte, expectedReportData [64]byte) (map[int][]byte, error) {
	return VerifyDCAP(attestationReport, expectedReportData[:])
}

// RemoteDCAPProvider obtains quotes from a quote service running in the
// same trust domain and verifies them locally.
type RemoteDCAPProvider struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func (p *RemoteDCAPProvider) AttestationType() string {
	return "dcap-tdx"
}

// Attest requests GET {URL}/attest/{hex report data}.
func (p *RemoteDCAPProvider) Attest(reportData [64]byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/attest/%s", p.URL, hex.EncodeToString(reportData[:]))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating quote request")
	}

	httpClient := p.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling remote quote provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Newf("remote quote provider returned status %d: %s", resp.StatusCode, body)
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading quote")
	}
	return rawQuote, nil
}

func (p *RemoteDCAPProvider) Verify(attestationReport []byte, expectedReportData [64]byte) (map[int][]byte, error) {
	return VerifyDCAP(attestationReport, expectedReportData[:])
}

// Intel's QE vendor id and the TD attributes a production guest must carry.
var (
	qeVendorID   = mustDecodeHex("939a7233f79c4ca9940a0db3957f0607")
	tdAttributes = mustDecodeHex("0000001000000000")
)

func mustDecodeHex(data string) []byte {
	decoded, err := hex.DecodeString(data)
	if err != nil {
		panic(err.Error())
	}
	return decoded
}

// VerifyDCAP checks a QuoteV4 against Intel's root of trust and the
// expected report data, and returns MRTD and RTMR0-3.
func VerifyDCAP(attestationReport []byte, expectedReportData []byte) (map[int][]byte, error) {
	anyQuote, err := abi.QuoteToProto(attestationReport)
	if err != nil {
		return nil, errors.Wrap(err, "parsing quote")
	}
	quote, ok := anyQuote.(*proto.QuoteV4)
	if !ok {
		return nil, errors.New("quote is not a QuoteV4")
	}

	config := &proto_checkconfig.Config{
		RootOfTrust: &proto_checkconfig.RootOfTrust{
			CheckCrl:      true,
			GetCollateral: true,
		},
		Policy: &proto_checkconfig.Policy{
			HeaderPolicy: &proto_checkconfig.HeaderPolicy{
				QeVendorId: qeVendorID,
			},
			TdQuoteBodyPolicy: &proto_checkconfig.TDQuoteBodyPolicy{
				TdAttributes: tdAttributes,
				ReportData:   expectedReportData,
			},
		},
	}

	options, err := verify.RootOfTrustToOptions(config.RootOfTrust)
	if err != nil {
		return nil, errors.Wrap(err, "converting root of trust to options")
	}
	if err := verify.TdxQuote(quote, options); err != nil {
		return nil, errors.Wrap(err, "verifying TDX quote")
	}

	opts, err := validate.PolicyToOptions(config.Policy)
	if err != nil {
		return nil, errors.Wrap(err, "converting policy to options")
	}
	if err := validate.TdxQuote(quote, opts); err != nil {
		return nil, errors.Wrap(err, "validating TDX quote")
	}

	body := quote.GetTdQuoteBody()
	return map[int][]byte{
		0: body.MrTd,
		1: body.Rtmrs[0],
		2: body.Rtmrs[1],
		3: body.Rtmrs[2],
		4: body.Rtmrs[3],
	}, nil
}

// DummyProvider stands in for TDX hardware: the "quote" is the report data
// itself. Only for tests and local runs.
type DummyProvider struct{}

func (p *DummyProvider) AttestationType() string {
	return "dummy-tdx"
}

func (p *DummyProvider) Attest(reportData [64]byte) ([]byte, error) {
	return bytes.Clone(reportData[:]), nil
}

// Verify checks that the attestation equals the expected report data.
func (p *DummyProvider) Verify(attestationReport []byte, expectedReportData [64]byte) (map[int][]byte, error) {
	if !bytes.Equal(attestationReport, expectedReportData[:]) {
		return nil, errors.New("attestation mismatch")
	}
	return map[int][]byte{0: {0}, 1: {1}, 2: {2}, 3: {3}, 4: {4}}, nil
}
