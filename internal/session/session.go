// Package session bundles the long-lived resources every command shares:
// the loaded configuration, the logger and an HTTP client trusting the
// deployment CA bundle.
package session

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"

	"go.uber.org/zap"

	"github.com/buildsight/rca-cli/internal/config"
)

// Session is the application environment threaded through the pipeline.
type Session struct {
	Cfg  *config.Config
	Log  *zap.Logger
	HTTP *http.Client
}

// New builds the shared HTTP client. A missing CA bundle file is not an
// error; the system trust store is used instead.
func New(cfg *config.Config, logger *zap.Logger) (*Session, error) {
	client, err := newHTTPClient(cfg.LogJuicer.CABundlePath, logger)
	if err != nil {
		return nil, err
	}
	return &Session{
		Cfg:  cfg,
		Log:  logger,
		HTTP: client,
	}, nil
}

// Close releases the session's idle network resources.
func (s *Session) Close() {
	s.HTTP.CloseIdleConnections()
}

func newHTTPClient(caBundlePath string, logger *zap.Logger) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if pem, err := os.ReadFile(caBundlePath); err == nil {
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no usable certificates in CA bundle %s", caBundlePath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
		logger.Debug("Loaded CA bundle", zap.String("path", caBundlePath))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read CA bundle %s: %w", caBundlePath, err)
	}

	return &http.Client{
		Jar:       jar,
		Transport: transport,
	}, nil
}
