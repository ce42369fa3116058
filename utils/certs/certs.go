// Package certs provides a self-signed certificate manager: a throwaway
// CA-less cert (served via GetTLSConfig) plus the matching trust pool a
// client needs to verify it without InsecureSkipVerify. h2probe's
// --self-signed mode uses the trust pool.
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// CertManager defines the interface for managing TLS configuration.
type CertManager interface {
	GetTLSConfig() (*tls.Config, error)
	TrustPool() (*x509.CertPool, error)
}

// SelfSignedCertManager handles self-signed certificate generation for one
// host, usable both as a server's tls.Config source and, via TrustPool, as
// the client-side root a TLSNegotiator verifies that server against.
type SelfSignedCertManager struct {
	Host     string
	CertDir  string
	CertPath string
	KeyPath  string
	certDER  []byte // cached DER of the generated/loaded leaf cert
}

// NewSelfSignedCertManager creates a new manager for self-signed certificates
func NewSelfSignedCertManager(host, certDir string) *SelfSignedCertManager {
	certFileName := fmt.Sprintf("%s_cert.pem", host)
	keyFileName := fmt.Sprintf("%s_key.pem", host)

	return &SelfSignedCertManager{
		Host:     host,
		CertDir:  certDir,
		CertPath: filepath.Join(certDir, certFileName),
		KeyPath:  filepath.Join(certDir, keyFileName),
	}
}

// TrustPool returns an x509.CertPool containing exactly this manager's
// leaf certificate, generating it first if needed. A TLSNegotiator built
// with this pool as its tls.Config.RootCAs will verify a server presenting
// this same cert without needing InsecureSkipVerify.
func (cm *SelfSignedCertManager) TrustPool() (*x509.CertPool, error) {
	if err := cm.ensureCertDER(); err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(cm.certDER)
	if err != nil {
		return nil, fmt.Errorf("parse generated certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return pool, nil
}

func (cm *SelfSignedCertManager) ensureCertDER() error {
	if cm.certDER != nil {
		return nil
	}
	if !certExists(cm.CertPath, cm.KeyPath) {
		_, err := cm.generateSelfSignedCert()
		return err
	}
	certPEM, err := os.ReadFile(cm.CertPath)
	if err != nil {
		return err
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return fmt.Errorf("failed to decode PEM block containing certificate")
	}
	cm.certDER = block.Bytes
	return nil
}

// GetTLSConfig generates or loads a self-signed certificate and returns a
// server-side tls.Config presenting it.
func (cm *SelfSignedCertManager) GetTLSConfig() (*tls.Config, error) {
	cert, err := cm.GetCertificate()
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// GetCertificate loads or generates a self-signed certificate
func (cm *SelfSignedCertManager) GetCertificate() (*tls.Certificate, error) {
	if certExists(cm.CertPath, cm.KeyPath) {
		return loadCertificate(cm.CertPath, cm.KeyPath)
	}
	return cm.generateSelfSignedCert()
}

// generateSelfSignedCert generates and saves a self-signed certificate
func (cm *SelfSignedCertManager) generateSelfSignedCert() (*tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(365 * 24 * time.Hour) // 1-year validity

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, ip := range []string{"127.0.0.1", "::1"} {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return nil, err
		}
		ips = append(ips, parsed)
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: cm.Host,
		},
		DNSNames:    []string{cm.Host},
		IPAddresses: ips,
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
		},
		BasicConstraintsValid: true,
	}

	cm.certDER, err = x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}

	// Ensure the certificate directory exists
	os.MkdirAll(cm.CertDir, 0755)

	certOut, err := os.Create(cm.CertPath)
	if err != nil {
		return nil, err
	}
	defer certOut.Close()
	pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: cm.certDER})

	keyOut, err := os.Create(cm.KeyPath)
	if err != nil {
		return nil, err
	}
	defer keyOut.Close()
	pem.Encode(keyOut, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	return loadCertificate(cm.CertPath, cm.KeyPath)
}

// Helper functions
func certExists(certPath, keyPath string) bool {
	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		return false
	}
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		return false
	}
	return true
}

func loadCertificate(certPath, keyPath string) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}
