package mqttv3

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTLSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TLSErrorCode
	}{
		{
			name: "unknown authority",
			err:  x509.UnknownAuthorityError{},
			want: TLSErrUnknownAuthority,
		},
		{
			name: "hostname mismatch",
			err:  x509.HostnameError{Host: "example.com"},
			want: TLSErrHostnameMismatch,
		},
		{
			name: "expired",
			err:  x509.CertificateInvalidError{Reason: x509.Expired},
			want: TLSErrCertificateExpired,
		},
		{
			name: "other invalidity",
			err:  x509.CertificateInvalidError{Reason: x509.TooManyIntermediates},
			want: TLSErrCertificateInvalid,
		},
		{
			name: "unclassified",
			err:  assert.AnError,
			want: TLSErrUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTLSError(tt.err))
		})
	}
}

func TestTLSErrorCodeString(t *testing.T) {
	assert.Equal(t, "unknown certificate authority", TLSErrUnknownAuthority.String())
	assert.Equal(t, "unknown TLS error", TLSErrUnknown.String())
}

func TestTLSVerificationErrorUnwrapsConnectionFailed(t *testing.T) {
	err := &TLSVerificationError{Codes: []TLSErrorCode{TLSErrCertificateExpired}}
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Contains(t, err.Error(), "certificate expired")
}

func TestTLSConfigWithoutAllowListUnchanged(t *testing.T) {
	base := &tls.Config{ServerName: "broker.local", MinVersion: tls.VersionTLS12}
	cfg := tlsConfigWithAllowList(base, "broker.local", nil)
	assert.Same(t, base, cfg)
}

func TestTLSConfigWithAllowListVerifiesManually(t *testing.T) {
	cfg := tlsConfigWithAllowList(nil, "broker.local",
		[]TLSErrorCode{TLSErrUnknownAuthority})

	require.NotNil(t, cfg)
	assert.True(t, cfg.InsecureSkipVerify)
	require.NotNil(t, cfg.VerifyPeerCertificate)

	// An empty chain is always rejected.
	err := cfg.VerifyPeerCertificate(nil, nil)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestTLSConfigAllowListDoesNotMutateBase(t *testing.T) {
	base := &tls.Config{MinVersion: tls.VersionTLS13}
	cfg := tlsConfigWithAllowList(base, "broker.local",
		[]TLSErrorCode{TLSErrCertificateExpired})

	assert.False(t, base.InsecureSkipVerify)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
}
