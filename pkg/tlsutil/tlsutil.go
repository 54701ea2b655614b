// Package tlsutil builds client TLS configurations for the hub link.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	errs "github.com/Gondolav/inventory-connector/errors"
)

// ClientConfig holds client TLS settings. The system CA bundle is always
// trusted; CAFiles are additional trusted CAs.
type ClientConfig struct {
	CAFiles []string
	// CertFile and KeyFile enable mutual TLS when both are set
	CertFile           string
	KeyFile            string
	MinVersion         string // "1.2" or "1.3"
	InsecureSkipVerify bool
}

// Empty reports whether cfg carries no settings, in which case the
// dialer defaults apply.
func (cfg ClientConfig) Empty() bool {
	return len(cfg.CAFiles) == 0 && cfg.CertFile == "" && cfg.KeyFile == "" &&
		cfg.MinVersion == "" && !cfg.InsecureSkipVerify
}

// LoadClientConfig creates a tls.Config for websocket and HTTP clients
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errs.WrapFatal(err, "tlsutil", "LoadClientConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errs.WrapFatal(fmt.Errorf("invalid PEM data"),
				"tlsutil", "LoadClientConfig", fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	tlsConfig.RootCAs = rootCAs

	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errs.WrapInvalid(errs.Join(errs.ErrInvalidConfig, fmt.Errorf("client certificate and key must be set together")),
			"tlsutil", "LoadClientConfig", "check client certificate")
	}
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errs.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// operator opt-in only
	tlsConfig.InsecureSkipVerify = cfg.InsecureSkipVerify

	return tlsConfig, nil
}

// parseTLSVersion returns tls.VersionTLS12 for empty or unknown versions
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
