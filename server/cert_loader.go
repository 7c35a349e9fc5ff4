package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const defaultCertCheckInterval = time.Minute

// CertLoader serves the listener's TLS certificate and picks up a renewed key pair
// without a restart. The files are stat'ed at most once per check interval.
type CertLoader struct {
	certFile      string
	keyFile       string
	checkInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu        sync.Mutex
	cert      *tls.Certificate
	loadedAt  time.Time
	lastCheck time.Time
}

// NewCertLoader loads the key pair and returns a loader for it.
func NewCertLoader(certFile, keyFile string, logger *slog.Logger) (*CertLoader, error) {
	l := &CertLoader{
		certFile:      certFile,
		keyFile:       keyFile,
		checkInterval: defaultCertCheckInterval,
		logger:        logger,
		now:           time.Now,
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	l.lastCheck = l.now()
	return l, nil
}

// GetCertificate is a tls.Config.GetCertificate callback.
// If the files changed but can't be loaded, the previous certificate is kept.
func (l *CertLoader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCheck) < l.checkInterval {
		return l.cert, nil
	}
	l.lastCheck = now

	if l.changed() {
		if err := l.load(); err != nil {
			l.logger.Error("failed to reload tls certificate", "error", err)
		}
	}
	return l.cert, nil
}

// TLSConfig returns a server TLS config backed by the loader.
func (l *CertLoader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: l.GetCertificate,
	}
}

// changed must be called with mu held.
func (l *CertLoader) changed() bool {
	for _, path := range []string{l.certFile, l.keyFile} {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn("failed to stat tls file", "file", path, "error", err)
			return false
		}
		if info.ModTime().After(l.loadedAt) {
			return true
		}
	}
	return false
}

// load must be called with mu held, or before the loader is shared.
func (l *CertLoader) load() error {
	cert, err := tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load key pair: %w", err)
	}
	l.cert = &cert
	l.loadedAt = l.now()
	l.logger.Info("loaded tls certificate", "cert", l.certFile, "key", l.keyFile)
	return nil
}
