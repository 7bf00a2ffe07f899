// Package backup copies the input directory aside before any file in it is
// overwritten.
package backup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"headswap/internal/hserrors"
)

// TimestampLayout is appended to the source directory name.
const TimestampLayout = "20060102-150405"

// Dir returns the backup location for src at time now: a sibling of src
// unless root is set, named "<base>-<timestamp>".
func Dir(src, root string, now time.Time) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	if root == "" {
		root = filepath.Dir(abs)
	}
	return filepath.Join(root, filepath.Base(abs)+"-"+now.Format(TimestampLayout)), nil
}

// Create copies the tree at src into a new timestamped directory and returns
// its path. It refuses to overwrite an existing backup.
func Create(src, root string, now time.Time) (string, error) {
	dst, err := Dir(src, root, now)
	if err != nil {
		return "", &hserrors.IOError{Op: "backup", Path: src, Cause: err}
	}

	if _, err := os.Lstat(dst); err == nil {
		return "", &hserrors.IOError{Op: "backup", Path: dst, Cause: fs.ErrExist}
	}

	if err := Copy(src, dst); err != nil {
		return "", &hserrors.IOError{Op: "backup", Path: dst, Cause: err}
	}
	return dst, nil
}

// Copy recursively copies the directory src to dst, preserving file modes.
// Symbolic links are recreated, not followed.
func Copy(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
