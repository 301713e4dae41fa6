package mqttv3

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

// TLSErrorCode classifies a certificate verification failure. Codes
// are what an allow-list matches on; the certificate that triggered
// the failure is deliberately not part of the comparison, so an
// allow-listed code tolerates any certificate failing that way.
type TLSErrorCode int

const (
	// TLSErrUnknown is any verification failure not classified below.
	TLSErrUnknown TLSErrorCode = iota

	// TLSErrUnknownAuthority means the certificate chains to an
	// unknown root.
	TLSErrUnknownAuthority

	// TLSErrCertificateExpired means the certificate is outside its
	// validity window.
	TLSErrCertificateExpired

	// TLSErrHostnameMismatch means the certificate is not valid for
	// the requested host name.
	TLSErrHostnameMismatch

	// TLSErrCertificateInvalid is any other x509 validity failure
	// (wrong usage, too many intermediates, not authorized to sign).
	TLSErrCertificateInvalid
)

// String returns the string representation of the TLS error code.
func (c TLSErrorCode) String() string {
	switch c {
	case TLSErrUnknownAuthority:
		return "unknown certificate authority"
	case TLSErrCertificateExpired:
		return "certificate expired or not yet valid"
	case TLSErrHostnameMismatch:
		return "hostname mismatch"
	case TLSErrCertificateInvalid:
		return "certificate invalid"
	default:
		return "unknown TLS error"
	}
}

// TLSVerificationError reports certificate verification failures that
// were not covered by the allow-list.
type TLSVerificationError struct {
	// Codes holds every verification failure observed, tolerated or
	// not.
	Codes []TLSErrorCode
}

func (e *TLSVerificationError) Error() string {
	parts := make([]string, 0, len(e.Codes))
	for _, code := range e.Codes {
		parts = append(parts, code.String())
	}
	return "TLS verification failed: " + strings.Join(parts, ", ")
}

func (e *TLSVerificationError) Unwrap() error { return ErrConnectionFailed }

// classifyTLSError maps an x509 verification error to its code.
func classifyTLSError(err error) TLSErrorCode {
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return TLSErrUnknownAuthority
	}

	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return TLSErrHostnameMismatch
	}

	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		if invalid.Reason == x509.Expired {
			return TLSErrCertificateExpired
		}
		return TLSErrCertificateInvalid
	}

	return TLSErrUnknown
}

// tlsConfigWithAllowList derives a TLS configuration that verifies the
// peer chain itself and tolerates exactly the allow-listed failure
// codes. With an empty allow-list the base configuration is returned
// unchanged and crypto/tls verifies as usual.
func tlsConfigWithAllowList(base *tls.Config, serverName string, allow []TLSErrorCode) *tls.Config {
	if len(allow) == 0 {
		return base
	}

	tolerated := make(map[TLSErrorCode]struct{}, len(allow))
	for _, code := range allow {
		tolerated[code] = struct{}{}
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if base != nil {
		cfg = base.Clone()
	}

	roots := cfg.RootCAs

	// Verification moves into VerifyPeerCertificate so that individual
	// failures can be matched against the allow-list.
	cfg.InsecureSkipVerify = true
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
			}
			certs = append(certs, cert)
		}
		if len(certs) == 0 {
			return fmt.Errorf("%w: no peer certificates", ErrConnectionFailed)
		}

		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}

		var codes []TLSErrorCode

		if _, err := certs[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
		}); err != nil {
			codes = append(codes, classifyTLSError(err))
		}

		if err := certs[0].VerifyHostname(serverName); err != nil {
			codes = append(codes, TLSErrHostnameMismatch)
		}

		// Proceed only if every observed failure is tolerated.
		for _, code := range codes {
			if _, ok := tolerated[code]; !ok {
				return &TLSVerificationError{Codes: codes}
			}
		}

		return nil
	}

	return cfg
}
