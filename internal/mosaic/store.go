package mosaic

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/klauspost/compress/gzip"

	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// Backend names, also used as metric label values.
const (
	BackendFile = "file"
	BackendS3   = "s3"
	BackendHTTP = "http"
)

// DefaultMaxBytes caps the size of a decoded document.
const DefaultMaxBytes = 64 << 20

// S3API is the part of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures a Store. Zero value reads local files only.
type Options struct {
	// S3 returns the client for s3:// sources. It is called on first use
	// so processes that never read from S3 never load AWS config.
	S3 func(context.Context) (S3API, error)

	HTTPClient *http.Client

	// Backends lists the enabled backends. Empty enables all of them.
	Backends []string

	MaxBytes int64

	// ObserveLoad is called after every read attempt.
	ObserveLoad func(backend string, d time.Duration)

	Logger log.Logger
}

// Store reads MosaicJSON documents from local files, S3 or HTTP(S).
type Store struct {
	opts    Options
	enabled map[string]bool
}

func NewStore(opts Options) *Store {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if len(opts.Backends) == 0 {
		opts.Backends = []string{BackendFile, BackendS3, BackendHTTP}
	}
	enabled := make(map[string]bool, len(opts.Backends))
	for _, b := range opts.Backends {
		enabled[strings.ToLower(strings.TrimSpace(b))] = true
	}
	return &Store{opts: opts, enabled: enabled}
}

// BackendOf names the backend serving src, or "" when none does.
func BackendOf(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "", "file":
		return BackendFile
	case "s3":
		return BackendS3
	case "http", "https":
		return BackendHTTP
	}
	return ""
}

// Read fetches, decompresses and validates the document at src.
func (s *Store) Read(ctx context.Context, src string) (*MosaicJSON, error) {
	backend := BackendOf(src)
	if backend == "" || !s.enabled[backend] {
		return nil, xerrors.Wrapf(ErrUnsupportedBackend, "%s", src)
	}

	start := time.Now()
	raw, err := s.fetch(ctx, backend, src)
	if s.opts.ObserveLoad != nil {
		s.opts.ObserveLoad(backend, time.Since(start))
	}
	if err != nil {
		s.opts.Logger.Debug(ctx, "mosaic read failed", "backend", backend, "src", src, "err", err)
		return nil, err
	}
	return Decode(raw)
}

func (s *Store) fetch(ctx context.Context, backend, src string) ([]byte, error) {
	switch backend {
	case BackendS3:
		return s.fetchS3(ctx, src)
	case BackendHTTP:
		return s.fetchHTTP(ctx, src)
	default:
		return s.fetchFile(src)
	}
}

func (s *Store) fetchFile(src string) ([]byte, error) {
	path := strings.TrimPrefix(src, "file://")
	if hasDotSegments(path) {
		return nil, xerrors.Newf("%w: %q has relative path segments", ErrInvalid, path)
	}
	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, xerrors.Newf("%w: %s", ErrNotFound, path)
		case errors.Is(err, fs.ErrPermission):
			return nil, xerrors.Newf("%w: %s", ErrAuth, path)
		}
		return nil, xerrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return s.readBody(f, path)
}

// hasDotSegments reports whether any path segment is "." or "..".
func hasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

func (s *Store) fetchS3(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil || u.Host == "" || strings.TrimPrefix(u.Path, "/") == "" {
		return nil, xerrors.Newf("%w: malformed s3 url %q", ErrInvalid, src)
	}
	if s.opts.S3 == nil {
		return nil, xerrors.Wrapf(ErrUnsupportedBackend, "no s3 client for %s", src)
	}
	client, err := s.opts.S3(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "s3 client")
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, classifyS3(err, src)
	}
	defer out.Body.Close()
	return s.readBody(out.Body, src)
}

func classifyS3(err error, src string) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return xerrors.Newf("%w: %s: %w", ErrNotFound, src, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return xerrors.Newf("%w: %s: %w", ErrAuth, src, err)
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		if c := classifyStatus(respErr.HTTPStatusCode()); c != nil {
			return xerrors.Newf("%w: %s: %w", c, src, err)
		}
	}
	return xerrors.Wrapf(err, "get %s", src)
}

func classifyStatus(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	}
	return nil
}

func (s *Store) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, xerrors.Newf("%w: %s: %w", ErrInvalid, src, err)
	}
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrapf(err, "get %s", src)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if c := classifyStatus(resp.StatusCode); c != nil {
			return nil, xerrors.Newf("%w: %s: status %d", c, src, resp.StatusCode)
		}
		return nil, xerrors.Newf("%w: %s: status %d", ErrInvalid, src, resp.StatusCode)
	}
	return s.readBody(resp.Body, src)
}

// readBody inflates gzip content, detected by magic bytes, and enforces
// MaxBytes on the decoded size.
func (s *Store) readBody(r io.Reader, src string) ([]byte, error) {
	br := bufio.NewReader(r)
	if magic, _ := br.Peek(2); bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, xerrors.Newf("%w: %s: %w", ErrInvalid, src, err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	b, err := io.ReadAll(io.LimitReader(r, s.opts.MaxBytes+1))
	if err != nil {
		return nil, xerrors.Newf("%w: read %s: %w", ErrInvalid, src, err)
	}
	if int64(len(b)) > s.opts.MaxBytes {
		return nil, xerrors.Newf("%w: %s exceeds %d bytes", ErrInvalid, src, s.opts.MaxBytes)
	}
	return b, nil
}
