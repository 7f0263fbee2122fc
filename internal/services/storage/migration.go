package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/rs/zerolog/log"
)

// dataExtensions are the file types converted by Enable/DisableEncryption
var dataExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".yaml": true,
	".yml":  true,
}

// EnableEncryption encrypts every data file in the directory with password
func (s *Storage) EnableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return fmt.Errorf("encryption is already enabled")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	sealed, err := encryptData([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("encrypt verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, sealed, 0644); err != nil {
		return fmt.Errorf("write verification file: %w", err)
	}

	files, err := s.dataFiles()
	if err != nil {
		os.Remove(verifyPath)
		return err
	}

	var done []string
	for _, path := range files {
		err := transformFile(path, func(data []byte) ([]byte, bool, error) {
			if isAgeEncrypted(data) {
				return nil, false, nil
			}
			out, err := encryptData(data, recipient)
			return out, true, err
		})
		if err != nil {
			// best effort: restore what was already converted
			for _, p := range done {
				transformFile(p, func(data []byte) ([]byte, bool, error) {
					out, err := decryptData(data, identity)
					return out, err == nil, nil
				})
			}
			os.Remove(verifyPath)
			return fmt.Errorf("encrypt %s: %w", filepath.Base(path), err)
		}
		done = append(done, path)
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0644); err != nil {
		return fmt.Errorf("create marker file: %w", err)
	}

	s.encrypted = true
	s.identity = identity
	s.recipient = recipient
	log.Info().Int("files", len(done)).Str("dir", s.baseDir).Msg("Data directory encrypted")
	return nil
}

// DisableEncryption decrypts every data file; password must match the current one
func (s *Storage) DisableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return fmt.Errorf("encryption is not enabled")
	}

	identity, err := s.verify(password)
	if err != nil {
		return err
	}

	files, err := s.dataFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		err := transformFile(path, func(data []byte) ([]byte, bool, error) {
			if !isAgeEncrypted(data) {
				return nil, false, nil
			}
			out, err := decryptData(data, identity)
			return out, true, err
		})
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	log.Info().Int("files", len(files)).Str("dir", s.baseDir).Msg("Data directory decrypted")
	return nil
}

// DataFiles lists the data files under the directory, relative to it, in walk order
func (s *Storage) DataFiles() ([]string, error) {
	files, err := s.dataFiles()
	if err != nil {
		return nil, err
	}
	rel := make([]string, 0, len(files))
	for _, f := range files {
		r, err := filepath.Rel(s.baseDir, f)
		if err != nil {
			return nil, err
		}
		rel = append(rel, filepath.ToSlash(r))
	}
	return rel, nil
}

// dataFiles lists the convertible files under the data directory
func (s *Storage) dataFiles() ([]string, error) {
	var files []string
	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || isControlFile(path) {
			return nil
		}
		if dataExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan data directory: %w", err)
	}
	return files, nil
}

// transformFile rewrites path in place with fn's output; fn returns changed=false to leave it alone
func transformFile(path string, fn func([]byte) ([]byte, bool, error)) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, changed, err := fn(data)
	if err != nil || !changed {
		return err
	}
	return atomicWrite(path, out, info.Mode().Perm())
}
