package addonlib

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/stkaddons/addonmgr/pkg/logger"
)

// Installer turns a verified archive into installed addon content and
// records the install. An update removes the old content only after
// the replacement tree is fully extracted, so an interrupted install
// never leaves the previous revision half-deleted.
type Installer struct {
	Fs     afero.Fs
	Store  *Store
	Logger logger.Logger
}

// Install extracts the archive at t.TargetPath into t.InstallDir,
// swaps it into place, records the InstalledEntry and removes the
// archive.
func (ins *Installer) Install(t *Task) error {
	l := ins.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}
	staging := t.InstallDir + ".staging"
	_ = ins.Fs.RemoveAll(staging)
	if err := ins.extract(t.TargetPath, staging); err != nil {
		_ = ins.Fs.RemoveAll(staging)
		return fmt.Errorf("extract %s: %w", t.Entry.ID, err)
	}
	if t.Action == ActionUpdate {
		l.Info("install: removing revision %d of %s", t.PrevRevision, t.Entry.ID)
	}
	if err := ins.Fs.RemoveAll(t.InstallDir); err != nil {
		_ = ins.Fs.RemoveAll(staging)
		return fmt.Errorf("remove old %s: %w", t.Entry.ID, err)
	}
	if err := ins.Fs.Rename(staging, t.InstallDir); err != nil {
		return fmt.Errorf("install %s: %w", t.Entry.ID, err)
	}
	if ins.Store != nil {
		err := ins.Store.Put(InstalledEntry{
			ID:        t.Entry.ID,
			Category:  t.Entry.Category,
			Revision:  t.Entry.Revision,
			Path:      t.InstallDir,
			Size:      t.Entry.Size,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
	}
	// The archive served its purpose; a failure to remove it is not
	// worth failing the task over.
	if err := ins.Fs.Remove(t.TargetPath); err != nil {
		l.Warning("install: could not remove archive %s: %s", t.TargetPath, err.Error())
	}
	return nil
}

func (ins *Installer) extract(archivePath, dir string) error {
	f, err := ins.Fs.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return err
	}
	if err := ins.Fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, member := range zr.File {
		if err := ins.extractMember(member, dir); err != nil {
			return err
		}
	}
	return nil
}

func (ins *Installer) extractMember(member *zip.File, dir string) error {
	name := filepath.FromSlash(member.Name)
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrArchiveTraversal, member.Name)
	}
	target := filepath.Join(dir, name)
	if member.FileInfo().IsDir() {
		return ins.Fs.MkdirAll(target, 0755)
	}
	if err := ins.Fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := ins.Fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, member.Mode()|0600)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}
