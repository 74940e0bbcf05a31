// Package keys loads the RSA signing keypair from disk and hot-reloads it
// when the backing files change, so key rotation is a file replacement
// rather than a restart.
package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrKeyLoad = errors.New("keys: cannot load key")

// Provider caches the keypair together with the modification timestamps of
// the backing files. Every accessor stats the file first and reloads when
// the timestamp advanced; readers of a fresh key share a read lock.
type Provider struct {
	privatePath string
	publicPath  string

	mu         sync.RWMutex
	private    *rsa.PrivateKey
	public     *rsa.PublicKey
	privateMod time.Time
	publicMod  time.Time
}

// NewProvider loads both keys eagerly. A failure here is fatal: without an
// initial keypair no token can ever be issued or verified.
func NewProvider(privatePath, publicPath string) (*Provider, error) {
	p := &Provider{privatePath: privatePath, publicPath: publicPath}
	if _, err := p.PrivateKey(); err != nil {
		return nil, err
	}
	if _, err := p.PublicKey(); err != nil {
		return nil, err
	}
	return p, nil
}

// PrivateKey returns the current signing key, reloading it first if the file
// on disk is newer than the cached copy.
func (p *Provider) PrivateKey() (*rsa.PrivateKey, error) {
	mod, err := fileModTime(p.privatePath)
	if err != nil {
		return p.stalePrivate(err)
	}
	p.mu.RLock()
	if p.private != nil && !mod.After(p.privateMod) {
		key := p.private
		p.mu.RUnlock()
		return key, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	// another request may have reloaded while we waited for the lock
	if p.private != nil && !mod.After(p.privateMod) {
		return p.private, nil
	}
	key, err := loadPrivateKey(p.privatePath)
	if err != nil {
		if p.private != nil {
			log.Warn().Err(err).Str("file", p.privatePath).Msg("private key reload failed, keeping previous key")
			return p.private, nil
		}
		return nil, err
	}
	p.private = key
	p.privateMod = mod
	log.Info().Str("file", p.privatePath).Msg("loaded private key")
	return key, nil
}

// PublicKey returns the current verification key, reloading it first if the
// file on disk is newer than the cached copy.
func (p *Provider) PublicKey() (*rsa.PublicKey, error) {
	mod, err := fileModTime(p.publicPath)
	if err != nil {
		return p.stalePublic(err)
	}
	p.mu.RLock()
	if p.public != nil && !mod.After(p.publicMod) {
		key := p.public
		p.mu.RUnlock()
		return key, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.public != nil && !mod.After(p.publicMod) {
		return p.public, nil
	}
	key, err := loadPublicKey(p.publicPath)
	if err != nil {
		if p.public != nil {
			log.Warn().Err(err).Str("file", p.publicPath).Msg("public key reload failed, keeping previous key")
			return p.public, nil
		}
		return nil, err
	}
	p.public = key
	p.publicMod = mod
	log.Info().Str("file", p.publicPath).Msg("loaded public key")
	return key, nil
}

func (p *Provider) stalePrivate(cause error) (*rsa.PrivateKey, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.private != nil {
		log.Warn().Err(cause).Str("file", p.privatePath).Msg("cannot stat private key file, using cached key")
		return p.private, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrKeyLoad, cause)
}

func (p *Provider) stalePublic(cause error) (*rsa.PublicKey, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.public != nil {
		log.Warn().Err(cause).Str("file", p.publicPath).Msg("cannot stat public key file, using cached key")
		return p.public, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrKeyLoad, cause)
}

func fileModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// loadPrivateKey reads a PKCS#8 RSA private key, PEM-wrapped or raw DER.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	der, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrKeyLoad, path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not contain an RSA key", ErrKeyLoad, path)
	}
	return key, nil
}

// loadPublicKey reads an X.509 SubjectPublicKeyInfo RSA public key,
// PEM-wrapped or raw DER.
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	der, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrKeyLoad, path, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not contain an RSA key", ErrKeyLoad, path)
	}
	return key, nil
}

func readKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrKeyLoad, path, err)
	}
	if block, _ := pem.Decode(data); block != nil {
		return block.Bytes, nil
	}
	return data, nil
}
