// Package disk is an external-scope Provider on the local filesystem.
//
// Each key maps to one file under Root (sharded by the first byte of its
// SHA-256). A file holds an expiry, the key itself and the value; the stored
// key lets ClearPrefix select files without an index. Writes go to a temp file in the same directory and are renamed
// into place, so readers in any process see either the old or the new value,
// never a torn one. Entries persist across restarts until deleted.
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	pr "github.com/unkn0wn-root/rendercache/provider"
)

const (
	fileExt = ".rc"
	hdrLen  = 10 // expiry, unix nano (0 => none) + key length
	maxKey  = 1<<16 - 1
)

type Config struct {
	Root     string
	DirPerm  fs.FileMode // 0 => 0o755
	FilePerm fs.FileMode // 0 => 0o644
}

type Provider struct {
	root     string
	dirPerm  fs.FileMode
	filePerm fs.FileMode
	now      func() time.Time
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Clearer       = (*Provider)(nil)
	_ pr.PrefixClearer = (*Provider)(nil)
	_ pr.Lener         = (*Provider)(nil)
)

func New(cfg Config) (*Provider, error) {
	if cfg.Root == "" {
		return nil, errors.New("disk provider: root is required")
	}
	p := &Provider{
		root:     cfg.Root,
		dirPerm:  cfg.DirPerm,
		filePerm: cfg.FilePerm,
		now:      time.Now,
	}
	if p.dirPerm == 0 {
		p.dirPerm = 0o755
	}
	if p.filePerm == 0 {
		p.filePerm = 0o644
	}
	if err := os.MkdirAll(p.root, p.dirPerm); err != nil {
		return nil, fmt.Errorf("disk provider: %w", err)
	}
	return p, nil
}

func (p *Provider) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(p.root, name[:2], name+fileExt)
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := p.path(key)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	exp, stored, ok := parseHeader(b)
	if !ok {
		_ = os.Remove(path) // foreign or truncated file
		return nil, false, nil
	}
	if stored != key {
		// sha256 collision or a foreign file; not ours to delete
		return nil, false, nil
	}
	if exp != 0 && p.now().UnixNano() > exp {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return b[hdrLen+len(key):], true, nil
}

// parseHeader returns the expiry and key stored at the start of b.
func parseHeader(b []byte) (exp int64, key string, ok bool) {
	if len(b) < hdrLen {
		return 0, "", false
	}
	n := int(binary.BigEndian.Uint16(b[8:hdrLen]))
	if len(b) < hdrLen+n {
		return 0, "", false
	}
	return int64(binary.BigEndian.Uint64(b[:8])), string(b[hdrLen : hdrLen+n]), true
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if len(key) > maxKey {
		return false, fmt.Errorf("disk provider: key of %d bytes is too long", len(key))
	}
	path := p.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, p.dirPerm); err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	hdr := make([]byte, hdrLen, hdrLen+len(key))
	if ttl > 0 {
		binary.BigEndian.PutUint64(hdr[:8], uint64(p.now().Add(ttl).UnixNano()))
	}
	binary.BigEndian.PutUint16(hdr[8:], uint16(len(key)))
	hdr = append(hdr, key...)
	if _, err := tmp.Write(hdr); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(tmpName, p.filePerm); err != nil {
		return false, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	if err := os.Remove(p.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every entry file under Root, leaving Root itself in place.
func (p *Provider) Clear(_ context.Context) error {
	return p.walk(func(path string) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

// ClearPrefix removes the files whose stored key starts with prefix. It reads
// only the header of each file.
func (p *Provider) ClearPrefix(_ context.Context, prefix string) error {
	return p.walk(func(path string) error {
		key, err := readKey(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil || !strings.HasPrefix(key, prefix) {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

func readKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	var hdr [hdrLen]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return "", nil // truncated; Get removes it
	}
	key := make([]byte, binary.BigEndian.Uint16(hdr[8:]))
	if _, err := io.ReadFull(f, key); err != nil {
		return "", nil
	}
	return string(key), nil
}

// Len counts entry files. It walks the tree; intended for tooling, not hot paths.
func (p *Provider) Len() int {
	n := 0
	_ = p.walk(func(string) error { n++; return nil })
	return n
}

func (p *Provider) walk(fn func(path string) error) error {
	return filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
			return nil
		}
		return fn(path)
	})
}

func (p *Provider) Close(context.Context) error { return nil }
