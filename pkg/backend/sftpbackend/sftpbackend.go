// Package sftpbackend adapts an SFTP server to the accessor.Accessor
// contract. Unlike the object-store backends in this module, SFTP speaks a
// real filesystem: it has native directories (and, like S3, native
// byte-range reads), but (as exposed by pkg/sftp) no atomic "create if absent" semantics and
// no server-side recursive listing, so list_with_recursive is left for the
// completion layer to synthesize.
package sftpbackend

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `Config` carries the settings needed to reach one SFTP server and root
// directory within it.
type Config struct {
	Addr       string // host:port
	User       string
	Password   string        // used if non-empty
	Signer     ssh.Signer    // private key auth, used if non-nil (offered after Password when both are set)
	HostKey    ssh.PublicKey // expected host key; nil disables verification
	Root       string        // directory all paths are resolved beneath
	DialTimeout time.Duration
	TraceLevel uint64
	Logger     *log.Logger
}

// `Backend` is an accessor.Accessor backed by one SFTP connection.
type Backend struct {
	cfg        Config
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	logger     *log.Logger
}

// Dial opens the SSH connection, starts the SFTP subsystem, and returns a
// ready Backend rooted at cfg.Root.
func Dial(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	auths := []ssh.AuthMethod{}
	if cfg.Password != "" {
		auths = append(auths, ssh.Password(cfg.Password))
	}
	if cfg.Signer != nil {
		auths = append(auths, ssh.PublicKeys(cfg.Signer))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.HostKey != nil {
		expected := cfg.HostKey
		hostKeyCallback = ssh.FixedHostKey(expected)
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auths,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.DialTimeout,
	}

	sshClient, err := ssh.Dial("tcp", cfg.Addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("sftpbackend: ssh.Dial: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("sftpbackend: sftp.NewClient: %w", err)
	}

	return &Backend{cfg: cfg, sshClient: sshClient, sftpClient: sftpClient, logger: cfg.Logger}, nil
}

// Close tears down the SFTP session and underlying SSH connection.
func (b *Backend) Close() error {
	sftpErr := b.sftpClient.Close()
	sshErr := b.sshClient.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}

func (b *Backend) fullPath(p string) string {
	return path.Join(b.cfg.Root, p)
}

func (b *Backend) trace(op string, arg any, err error) {
	switch b.cfg.TraceLevel {
	case 0:
		return
	case 1:
		if err != nil {
			b.logger.Printf("[WARN] sftpbackend.%s(%v) returning err: %v", op, arg, err)
		}
	default:
		if err == nil {
			b.logger.Printf("[INFO] sftpbackend.%s(%v) succeeded", op, arg)
		} else {
			b.logger.Printf("[WARN] sftpbackend.%s(%v) returning err: %v", op, arg, err)
		}
	}
}

func (b *Backend) Info() *accessor.AccessorInfo {
	return accessor.NewAccessorInfo("sftp", accessor.Capability{
		Read:          true,
		ReadWithRange: true,
		Stat:          true,
		Write:         true,
		WriteCanAppend: true,
		WriteCanEmpty:  true,
		CreateDir:      true,
		Delete:         true,
		List:           true,
		// Deliberately false: ListWithRecursive, Presign. pkg/sftp has no
		// server-side recursive listing and SFTP has no presigned-URL concept.
	})
}

func (b *Backend) CreateDir(ctx context.Context, p string, args accessor.OpCreateDir) (rp accessor.RpCreateDir, err error) {
	defer func() { b.trace("CreateDir", p, err) }()

	if mkErr := b.sftpClient.MkdirAll(b.fullPath(strings.TrimSuffix(p, "/"))); mkErr != nil {
		return accessor.RpCreateDir{}, translateErr(mkErr, p)
	}
	return accessor.RpCreateDir{}, nil
}

func (b *Backend) Stat(ctx context.Context, p string, args accessor.OpStat) (rp accessor.RpStat, err error) {
	defer func() { b.trace("Stat", p, err) }()

	info, statErr := b.sftpClient.Stat(b.fullPath(strings.TrimSuffix(p, "/")))
	if statErr != nil {
		return accessor.RpStat{}, translateErr(statErr, p)
	}

	if info.IsDir() {
		return accessor.RpStat{Metadata: accessor.NewDirMetadata().WithLastModified(info.ModTime())}, nil
	}
	return accessor.RpStat{Metadata: accessor.NewFileMetadata(uint64(info.Size())).WithLastModified(info.ModTime())}, nil
}

func (b *Backend) List(ctx context.Context, p string, args accessor.OpList) (rp accessor.RpList, lister accessor.Lister, err error) {
	defer func() { b.trace("List", p, err) }()

	infos, lsErr := b.sftpClient.ReadDir(b.fullPath(strings.TrimSuffix(p, "/")))
	if lsErr != nil {
		return accessor.RpList{}, nil, translateErr(lsErr, p)
	}

	entries := make([]accessor.Entry, 0, len(infos))
	for _, info := range infos {
		childPath := p + info.Name()
		if info.IsDir() {
			entries = append(entries, accessor.Entry{Path: childPath + "/", Meta: accessor.NewDirMetadata().WithLastModified(info.ModTime())})
		} else {
			entries = append(entries, accessor.Entry{Path: childPath, Meta: accessor.NewFileMetadata(uint64(info.Size())).WithLastModified(info.ModTime())})
		}
		if args.Limit > 0 && len(entries) >= args.Limit {
			break
		}
	}

	return accessor.RpList{}, &sliceLister{entries: entries}, nil
}

func (b *Backend) Read(ctx context.Context, p string, args accessor.OpRead) (rp accessor.RpRead, reader accessor.Reader, err error) {
	defer func() { b.trace("Read", p, err) }()

	f, openErr := b.sftpClient.Open(b.fullPath(p))
	if openErr != nil {
		return accessor.RpRead{}, nil, translateErr(openErr, p)
	}

	if args.RangeOffset != 0 {
		if _, err := f.Seek(int64(args.RangeOffset), io.SeekStart); err != nil {
			_ = f.Close()
			return accessor.RpRead{}, nil, accessor.NewError(accessor.KindUnexpected, "seeking sftp file").WithCause(err)
		}
	}

	var r io.Reader = f
	if args.RangeSize != nil {
		r = io.LimitReader(f, int64(*args.RangeSize))
	}

	return accessor.RpRead{}, &fileReader{f: f, r: r}, nil
}

func (b *Backend) Write(ctx context.Context, p string, args accessor.OpWrite) (accessor.RpWrite, accessor.Writer, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if args.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := b.sftpClient.OpenFile(b.fullPath(p), flags)
	if err != nil {
		return accessor.RpWrite{}, nil, translateErr(err, p)
	}
	return accessor.RpWrite{}, &fileWriter{f: f}, nil
}

func (b *Backend) Delete(ctx context.Context) (accessor.RpDelete, accessor.Deleter, error) {
	return accessor.RpDelete{}, &fileDeleter{backend: b}, nil
}

func (b *Backend) Presign(ctx context.Context, p string, args accessor.OpPresign) (accessor.RpPresign, error) {
	return accessor.RpPresign{}, accessor.NewError(accessor.KindUnsupported, "sftp backend does not support presign")
}

func translateErr(err error, p string) error {
	if os.IsNotExist(err) {
		return accessor.NewError(accessor.KindNotFound, "no such path: "+p).WithCause(err)
	}
	if os.IsPermission(err) {
		return accessor.NewError(accessor.KindPermissionDenied, "permission denied: "+p).WithCause(err)
	}
	return accessor.NewError(accessor.KindUnexpected, "sftp operation failed").WithCause(err)
}

type sliceLister struct {
	entries []accessor.Entry
	pos     int
}

func (l *sliceLister) Next(ctx context.Context) (*accessor.Entry, error) {
	if l.pos >= len(l.entries) {
		return nil, nil
	}
	e := l.entries[l.pos]
	l.pos++
	return &e, nil
}

type fileReader struct {
	f *sftp.File
	r io.Reader
}

func (r *fileReader) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 64*1024)
	n, err := r.r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.EOF {
		_ = r.f.Close()
		return nil, nil
	}
	if err != nil {
		_ = r.f.Close()
		return nil, accessor.NewError(accessor.KindUnexpected, "reading sftp file").WithCause(err)
	}
	return nil, nil
}

type fileWriter struct {
	f       *sftp.File
	written uint64
}

func (w *fileWriter) Write(ctx context.Context, chunk []byte) error {
	n, err := w.f.Write(chunk)
	w.written += uint64(n)
	if err != nil {
		return accessor.NewError(accessor.KindUnexpected, "writing sftp file").WithCause(err)
	}
	return nil
}

func (w *fileWriter) Close(ctx context.Context) (accessor.Metadata, error) {
	if err := w.f.Close(); err != nil {
		return accessor.Metadata{}, accessor.NewError(accessor.KindUnexpected, "closing sftp file").WithCause(err)
	}
	return accessor.NewFileMetadata(w.written), nil
}

func (w *fileWriter) Abort(ctx context.Context) error {
	return w.f.Close()
}

type fileDeleter struct {
	backend *Backend
}

func (d *fileDeleter) Delete(ctx context.Context, p string) error {
	full := d.backend.fullPath(strings.TrimSuffix(p, "/"))
	var err error
	if strings.HasSuffix(p, "/") {
		err = d.backend.sftpClient.RemoveDirectory(full)
	} else {
		err = d.backend.sftpClient.Remove(full)
	}
	if err != nil && !os.IsNotExist(err) {
		return translateErr(err, p)
	}
	return nil
}
