package remotedisk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mwantia/remotedisk/data"
)

// Metadata file format versions. Version 1 stored absolute remote object
// paths, version 2 switched to paths relative to the remote root, version 3
// added the read-only flag. Readers accept all three; writers always emit
// the latest.
const (
	VersionAbsolutePaths = 1
	VersionRelativePaths = 2
	VersionReadOnlyFlag  = 3
)

const latestVersion = VersionReadOnlyFlag

// ObjectRef names one remote object composing a logical file.
type ObjectRef struct {
	// Path of the object relative to the disk's remote root.
	Path string
	// Size of the object in bytes.
	Size int64
}

// Metadata is the local sidecar description of one logical file: which
// remote objects compose it, their total size and how many logical paths
// (hardlinks) currently resolve to it.
//
// The sidecar file mirrors the logical path 1:1 under the disk's local
// metadata root. Hardlinked logical paths share one sidecar through a local
// hardlink, so a RefCount decrement saved through one path is visible
// through every other.
type Metadata struct {
	remoteRoot string
	diskPath   string

	// FilePath is the disk-relative path of the sidecar file.
	FilePath string

	// TotalSize always equals the sum of all object sizes.
	TotalSize int64

	// Objects lists the remote objects in append order.
	Objects []ObjectRef

	// RefCount is the number of logical paths resolving to this record.
	// A fresh record starts at 1; the record and its remote objects are
	// eligible for deletion only once it reaches 0.
	RefCount uint32

	// ReadOnly blocks rewrites of the logical file.
	ReadOnly bool
}

func newMetadata(remoteRoot, diskPath, filePath string) *Metadata {
	return &Metadata{
		remoteRoot: remoteRoot,
		diskPath:   diskPath,
		FilePath:   filePath,
		RefCount:   1,
	}
}

// loadMetadata reads the sidecar at filePath, or returns a fresh empty
// record when create is set. With create unset a missing sidecar is
// data.ErrNotFound.
func loadMetadata(remoteRoot, diskPath, filePath string, create bool) (*Metadata, error) {
	m := newMetadata(remoteRoot, diskPath, filePath)
	if create {
		return m, nil
	}

	f, err := os.Open(m.localPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", data.ErrNotFound, filePath)
		}
		return nil, fmt.Errorf("failed to open metadata file %s: %w", filePath, err)
	}
	defer f.Close()

	if err := m.parse(bufio.NewScanner(f)); err != nil {
		return nil, err
	}

	return m, nil
}

// localPath returns the absolute location of the sidecar file.
func (m *Metadata) localPath() string {
	return filepath.Join(m.diskPath, filepath.FromSlash(m.FilePath))
}

// AddObject appends a remote object to the record.
// Object paths are stored relative to the remote root; duplicates are
// allowed since distinct remote objects never collide by construction.
func (m *Metadata) AddObject(path string, size int64) {
	m.Objects = append(m.Objects, ObjectRef{Path: path, Size: size})
	m.TotalSize += size
}

// Save serializes the full current state to the sidecar file, overwriting
// any previous content. Repeated saves of unchanged state yield
// byte-identical output. With sync set the write is flushed durably before
// returning.
func (m *Metadata) Save(sync bool) error {
	f, err := os.OpenFile(m.localPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to write metadata file %s: %w", m.FilePath, err)
	}

	if _, err := f.Write(m.encode()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write metadata file %s: %w", m.FilePath, err)
	}

	if sync {
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("failed to sync metadata file %s: %w", m.FilePath, err)
		}
	}

	return f.Close()
}

// encode renders the record in the latest format version.
func (m *Metadata) encode() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%d\n", latestVersion)
	fmt.Fprintf(&buf, "%d\t%d\n", len(m.Objects), m.TotalSize)

	for _, obj := range m.Objects {
		fmt.Fprintf(&buf, "%d\t%s\n", obj.Size, obj.Path)
	}

	fmt.Fprintf(&buf, "%d\n", m.RefCount)

	if m.ReadOnly {
		buf.WriteString("1\n")
	} else {
		buf.WriteString("0\n")
	}

	return buf.Bytes()
}

func (m *Metadata) parse(scanner *bufio.Scanner) error {
	version, err := scanLine(scanner, m.FilePath)
	if err != nil {
		return err
	}

	ver, err := strconv.Atoi(version)
	if err != nil {
		return fmt.Errorf("%w: %s: bad version marker %q", data.ErrCorruptedMetadata, m.FilePath, version)
	}

	if ver < VersionAbsolutePaths || ver > VersionReadOnlyFlag {
		return fmt.Errorf("%w: %s: version %d", data.ErrUnknownVersion, m.FilePath, ver)
	}

	header, err := scanLine(scanner, m.FilePath)
	if err != nil {
		return err
	}

	countField, sizeField, ok := strings.Cut(header, "\t")
	if !ok {
		return fmt.Errorf("%w: %s: bad object header %q", data.ErrCorruptedMetadata, m.FilePath, header)
	}

	count, err := strconv.Atoi(countField)
	if err != nil || count < 0 {
		return fmt.Errorf("%w: %s: bad object count %q", data.ErrCorruptedMetadata, m.FilePath, countField)
	}

	m.TotalSize, err = strconv.ParseInt(sizeField, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: bad total size %q", data.ErrCorruptedMetadata, m.FilePath, sizeField)
	}

	m.Objects = make([]ObjectRef, 0, count)
	for i := 0; i < count; i++ {
		line, err := scanLine(scanner, m.FilePath)
		if err != nil {
			return err
		}

		sizeField, pathField, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("%w: %s: bad object entry %q", data.ErrCorruptedMetadata, m.FilePath, line)
		}

		size, err := strconv.ParseInt(sizeField, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: bad object size %q", data.ErrCorruptedMetadata, m.FilePath, sizeField)
		}

		// Version 1 stored absolute remote paths.
		if ver == VersionAbsolutePaths {
			pathField = data.RelativeObjectPath(m.remoteRoot, pathField)
		}

		m.Objects = append(m.Objects, ObjectRef{Path: pathField, Size: size})
	}

	refField, err := scanLine(scanner, m.FilePath)
	if err != nil {
		return err
	}

	refCount, err := strconv.ParseUint(refField, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %s: bad reference count %q", data.ErrCorruptedMetadata, m.FilePath, refField)
	}
	m.RefCount = uint32(refCount)

	if ver >= VersionReadOnlyFlag {
		roField, err := scanLine(scanner, m.FilePath)
		if err != nil {
			return err
		}

		switch roField {
		case "0":
			m.ReadOnly = false
		case "1":
			m.ReadOnly = true
		default:
			return fmt.Errorf("%w: %s: bad read-only flag %q", data.ErrCorruptedMetadata, m.FilePath, roField)
		}
	}

	return nil
}

func scanLine(scanner *bufio.Scanner, filePath string) (string, error) {
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read metadata file %s: %w", filePath, err)
		}
		return "", fmt.Errorf("%w: %s: unexpected end of file", data.ErrCorruptedMetadata, filePath)
	}

	return scanner.Text(), nil
}
