// Package staging gives the server custody of files in flight between two
// peers: a sender's bytes land on disk under the server's control until
// the recipient pulls them down, then the staged copy is removed.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is a disk-backed staging area rooted at Root. Files live at
// <Root>/<sender>/<recipient>/<basename>, matching the custody path
// convention of the data model this server implements.
type Store struct {
	Root string
}

// New returns a Store rooted at root. The directory is created on first
// use, not here.
func New(root string) *Store {
	return &Store{Root: root}
}

// path builds the on-disk location for a staged file, sanitizing every
// caller-supplied component through filepath.Base so a handle or filename
// cannot escape its own directory via "../" or an absolute path.
func (s *Store) path(sender, recipient, filename string) string {
	return filepath.Join(s.Root, filepath.Base(sender), filepath.Base(recipient), filepath.Base(filename))
}

// Create opens a new staged file for writing, creating any missing parent
// directories. The caller is responsible for closing the returned file.
func (s *Store) Create(sender, recipient, filename string) (*os.File, error) {
	dst := s.path(sender, recipient, filename)
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return nil, fmt.Errorf("staging: create parent dirs for %s: %w", dst, err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("staging: create %s: %w", dst, err)
	}
	return f, nil
}

// Open opens a previously staged file for reading. The caller is
// responsible for closing the returned file.
func (s *Store) Open(sender, recipient, filename string) (*os.File, error) {
	src := s.path(sender, recipient, filename)
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("staging: open %s: %w", src, err)
	}
	return f, nil
}

// Delete removes a staged file, along with the now-empty sender/recipient
// directories above it. Deleting an already-absent file is not an error.
func (s *Store) Delete(sender, recipient, filename string) error {
	target := s.path(sender, recipient, filename)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("staging: delete %s: %w", target, err)
	}
	recipientDir := filepath.Dir(target)
	_ = os.Remove(recipientDir) // only succeeds if now empty
	_ = os.Remove(filepath.Dir(recipientDir))
	return nil
}
