package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const privateKeyBits = 2048

// Initialize creates a configuration directory at dir, files that already
// exist are left alone.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	configFs := afero.NewBasePathFs(afero.NewOsFs(), dir)

	if err := writeIfMissing(configFs, logger, ConfigurationName, 0600, func() ([]byte, error) {
		return defaultConfigData, nil
	}); err != nil {
		return nil, err
	}

	if err := writeIfMissing(configFs, logger, PrivateKeyName, 0600, generatePrivateKey); err != nil {
		return nil, err
	}

	if err := configFs.MkdirAll(LogsDirName, 0700); err != nil {
		return nil, err
	}

	return LoadFs(configFs)
}

func writeIfMissing(configFs afero.Fs, logger *log.Logger, name string, perm os.FileMode, contents func() ([]byte, error)) error {
	switch _, err := configFs.Stat(name); {
	case err == nil:
		logger.Printf("- %s exists, skipping", name)
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	logger.Printf("- Writing %s", name)
	data, err := contents()
	if err != nil {
		return err
	}
	return afero.WriteFile(configFs, name, data, perm)
}

func generatePrivateKey() ([]byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, privateKeyBits)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), nil
}
