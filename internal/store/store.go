package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"lanshare/internal/errs"
	"lanshare/internal/fsutil"
)

// StateDirName is the hidden directory inside the root that holds staging
// files. Sanitized names never start with a dot, so it cannot be addressed
// by clients.
const StateDirName = ".lanshare"

const DefaultMaxBytes int64 = 5 << 30

type Options struct {
	Root     string
	MaxBytes int64
	Logger   *slog.Logger
}

// Store owns the storage root. It keeps no index: the directory listing is
// the only source of truth, so every method is safe for concurrent use.
type Store struct {
	root     string
	tmpDir   string
	maxBytes int64
	log      *slog.Logger
}

// Object is an opened stored file, positioned at offset 0.
type Object struct {
	Name    string
	Size    int64
	ModTime time.Time
	Content io.ReadSeekCloser
}

// Staged is an upload fully written to the staging area but not yet visible.
type Staged struct {
	Name string
	Size int64
	tmp  string
}

func New(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, fmt.Errorf("%w: empty root", errs.ErrStorageUnavailable)
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		root:     root,
		tmpDir:   filepath.Join(root, StateDirName, "tmp"),
		maxBytes: opts.MaxBytes,
		log:      opts.Logger,
	}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Init creates the root and staging directories, checks that the root is
// writable and clears staging files left behind by a previous process.
func (s *Store) Init(ctx context.Context) error {
	if err := os.MkdirAll(s.tmpDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	st, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", errs.ErrStorageUnavailable, s.root)
	}

	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: root not writable: %v", errs.ErrStorageUnavailable, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	ents, err := os.ReadDir(s.tmpDir)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	for _, e := range ents {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: clearing staging: %w", errs.ErrStorageUnavailable, err)
		}
		if err := os.Remove(filepath.Join(s.tmpDir, e.Name())); err == nil {
			s.log.Debug("Removed stale staging file", "name", e.Name())
		}
	}
	s.log.Info("Storage ready", "root", s.root, "max_bytes", s.maxBytes)
	return nil
}

// List returns the names of the regular files directly inside the root,
// sorted ascending. Directories and symlinks are skipped.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	names := lo.FilterMap(ents, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), e.Type().IsRegular()
	})
	sort.Strings(names)
	return names, nil
}

// Search is a case-insensitive substring filter over List.
func (s *Store) Search(ctx context.Context, q string) ([]string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return names, nil
	}
	return lo.Filter(names, func(n string, _ int) bool {
		return strings.Contains(strings.ToLower(n), q)
	}), nil
}

// Save stores r under the sanitized form of rawName, replacing any previous
// file of that name. It returns the stored name.
func (s *Store) Save(ctx context.Context, rawName string, r io.Reader) (string, error) {
	staged, err := s.Stage(ctx, rawName, r)
	if err != nil {
		return "", err
	}
	if err := s.Commit(staged); err != nil {
		s.Discard(staged)
		return "", err
	}
	return staged.Name, nil
}

// Stage writes r into a private staging file. Nothing becomes visible in the
// root until Commit.
func (s *Store) Stage(ctx context.Context, rawName string, r io.Reader) (*Staged, error) {
	name, err := fsutil.Sanitize(rawName)
	if err != nil {
		return nil, err
	}
	tmp := filepath.Join(s.tmpDir, uuid.NewString()+".part")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}

	// one extra byte tells "exactly at the limit" apart from "over it"
	n, err := io.Copy(f, io.LimitReader(&sourceReader{ctx: ctx, r: r}, s.maxBytes+1))
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: limit is %d bytes", errs.ErrPayloadTooLarge, s.maxBytes)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, classifyWriteErr(err)
	}
	return &Staged{Name: name, Size: n, tmp: tmp}, nil
}

// Commit moves a staged upload into place. The rename is atomic, so readers
// see either the previous file or the new one in full.
func (s *Store) Commit(st *Staged) error {
	dst, err := fsutil.JoinWithinRoot(s.root, st.Name)
	if err != nil {
		return err
	}
	if err := os.Rename(st.tmp, dst); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	s.log.Info("File stored", "name", st.Name, "size", st.Size)
	return nil
}

// Discard drops a staged upload. It is a no-op once committed.
func (s *Store) Discard(st *Staged) {
	if st == nil {
		return
	}
	if err := os.Remove(st.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("Could not remove staging file", "tmp", st.tmp, "error", err)
	}
}

// Open returns the stored file for rawName. Anything other than a regular
// file is reported as errs.ErrNotFound.
func (s *Store) Open(ctx context.Context, rawName string) (*Object, error) {
	name, err := fsutil.Sanitize(rawName)
	if err != nil {
		return nil, err
	}
	abs, err := fsutil.JoinWithinRoot(s.root, name)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	st, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, name)
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	return &Object{Name: name, Size: st.Size(), ModTime: st.ModTime(), Content: f}, nil
}

// Delete removes the stored file for rawName. Deleting an absent file
// succeeds.
func (s *Store) Delete(ctx context.Context, rawName string) error {
	name, err := fsutil.Sanitize(rawName)
	if err != nil {
		return err
	}
	abs, err := fsutil.JoinWithinRoot(s.root, name)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	st, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("Delete of absent file", "name", name)
			return nil
		}
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	if !st.Mode().IsRegular() {
		s.log.Debug("Delete skipped, not a regular file", "name", name)
		return nil
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	s.log.Info("File deleted", "name", name)
	return nil
}

const exampleName = "example.txt"

// SeedExample writes example.txt when it does not exist yet.
func (s *Store) SeedExample(ctx context.Context) error {
	abs, err := fsutil.JoinWithinRoot(s.root, exampleName)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(abs); err == nil {
		return nil
	}
	body := "This is an example file.\nYou can upload, download, or delete files here."
	_, err = s.Save(ctx, exampleName, strings.NewReader(body))
	return err
}

func classifyWriteErr(err error) error {
	var re *readError
	switch {
	case errors.Is(err, errs.ErrPayloadTooLarge):
		return err
	case errors.As(err, &re):
		// client side failure (disconnect, body limit); the caller maps it
		return fmt.Errorf("read upload: %w", re.err)
	}
	return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
}

type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }

func (e *readError) Unwrap() error { return e.err }

// sourceReader stops a copy as soon as the request goes away and tags read
// failures so they are not mistaken for storage failures.
type sourceReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *sourceReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, &readError{err: err}
	}
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &readError{err: err}
	}
	return n, err
}
