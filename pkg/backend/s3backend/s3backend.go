// Package s3backend adapts Amazon S3 (and S3-compatible object stores) to
// the accessor.Accessor contract. It intentionally advertises no native
// create_dir, list_with_recursive, or write_can_append — S3's object model
// has no directories and PutObject always replaces an object wholesale. The
// completion layer fills in create_dir and recursive listing, exactly as
// with the memory backend; append writes are rejected with Unsupported.
package s3backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/NVIDIA/multi-storage-client/complete/pkg/accessor"
)

// `Config` carries the settings needed to reach one S3 bucket (or an
// S3-compatible endpoint). Fields mirror the backend_type == "S3" section of
// a multi-storage-client config file.
type Config struct {
	Bucket                    string // required
	Prefix                    string // default: ""
	Region                    string // required
	Endpoint                  string // required
	AccessKeyID               string // required
	SecretAccessKey           string // required
	AllowHTTP                 bool   // default: false
	SkipTLSCertificateVerify  bool   // default: false
	VirtualHostedStyleRequest bool   // default: false
	RetryDelay                []time.Duration
	TraceLevel                uint64
	Logger                    *log.Logger
}

// `Backend` is an accessor.Accessor backed by a single S3 bucket (and
// optional key prefix).
type Backend struct {
	cfg    Config
	client *s3.Client
	logger *log.Logger
}

// New builds a Backend from cfg, loading AWS SDK defaults layered with the
// static credentials and custom retryer cfg describes.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	b := &Backend{cfg: cfg, logger: cfg.Logger}

	configOptions := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
			},
		}),
		config.WithRegion(cfg.Region),
		config.WithRetryer(func() aws.Retryer { return b }),
	}

	if cfg.SkipTLSCertificateVerify {
		customHTTPClient := awshttp.NewBuildableClient().WithTransportOptions(func(t *http.Transport) {
			if t.TLSClientConfig == nil {
				t.TLSClientConfig = &tls.Config{}
			}
			t.TLSClientConfig.InsecureSkipVerify = true
			t.TLSClientConfig.MinVersion = tls.VersionTLS12
		})
		configOptions = append(configOptions, config.WithHTTPClient(customHTTPClient))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("s3backend: config.LoadDefaultConfig: %w", err)
	}

	scheme := "https://"
	if cfg.AllowHTTP {
		scheme = "http://"
	}
	endpoint := scheme + cfg.Endpoint

	b.client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = !cfg.VirtualHostedStyleRequest
	})

	return b, nil
}

// IsErrorRetryable satisfies aws.Retryer: anything that isn't a well-formed
// HTTP response error is assumed transient, and among well-formed responses
// statuses below 400, 429, and 5xx are retried.
func (b *Backend) IsErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *awshttp.ResponseError
	if !errors.As(err, &httpErr) {
		return true
	}
	code := httpErr.HTTPStatusCode()
	return code < 400 || code == http.StatusTooManyRequests || code >= 500
}

func (b *Backend) MaxAttempts() int { return len(b.cfg.RetryDelay) + 1 }

func (b *Backend) RetryDelay(attempt int, _ error) (time.Duration, error) {
	if attempt < 1 || attempt > len(b.cfg.RetryDelay) {
		return 0, fmt.Errorf("s3backend: unexpected retry attempt %d (want 1..%d)", attempt, len(b.cfg.RetryDelay))
	}
	return b.cfg.RetryDelay[attempt-1], nil
}

func (b *Backend) GetRetryToken(ctx context.Context, opErr error) (func(error) error, error) {
	return func(error) error { return nil }, nil
}

func (b *Backend) GetInitialToken() func(error) error {
	return func(error) error { return nil }
}

func (b *Backend) GetAttemptToken(context.Context) (func(error) error, error) {
	return func(error) error { return nil }, nil
}

func (b *Backend) fullPath(path string) string {
	return b.cfg.Prefix + path
}

func (b *Backend) trace(op string, arg any, err error) {
	switch b.cfg.TraceLevel {
	case 0:
		return
	case 1:
		if err != nil {
			b.logger.Printf("[WARN] s3backend.%s(%v) returning err: %v", op, arg, err)
		}
	default:
		if err == nil {
			b.logger.Printf("[INFO] s3backend.%s(%v) succeeded", op, arg)
		} else {
			b.logger.Printf("[WARN] s3backend.%s(%v) returning err: %v", op, arg, err)
		}
	}
}

func (b *Backend) Info() *accessor.AccessorInfo {
	return accessor.NewAccessorInfo("s3", accessor.Capability{
		Read:          true,
		ReadWithRange: true,
		Stat:          true,
		Write:         true,
		WriteCanEmpty: true,
		Delete:        true,
		List:          true,
		Presign:       true,
		// Deliberately false: CreateDir, ListWithRecursive, WriteCanAppend.
		// S3 objects have no directories and PutObject always replaces.
	})
}

func (b *Backend) CreateDir(ctx context.Context, path string, args accessor.OpCreateDir) (accessor.RpCreateDir, error) {
	return accessor.RpCreateDir{}, accessor.NewError(accessor.KindUnsupported, "s3 backend has no native create_dir")
}

func (b *Backend) Stat(ctx context.Context, path string, args accessor.OpStat) (rp accessor.RpStat, err error) {
	defer func() { b.trace("Stat", path, err) }()

	if strings.HasSuffix(path, "/") {
		return accessor.RpStat{}, accessor.NewError(accessor.KindUnsupported, "s3 backend has no native directory stat")
	}

	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.fullPath(path)),
	})
	if err != nil {
		return accessor.RpStat{}, translateErr(err, path)
	}

	meta := accessor.NewFileMetadata(uint64(aws.ToInt64(out.ContentLength)))
	if out.LastModified != nil {
		meta = meta.WithLastModified(*out.LastModified)
	}
	if out.ETag != nil {
		meta.ContentHash = trimETag(*out.ETag)
	}
	return accessor.RpStat{Metadata: meta}, nil
}

func (b *Backend) List(ctx context.Context, path string, args accessor.OpList) (rp accessor.RpList, lister accessor.Lister, err error) {
	defer func() { b.trace("List", path, err) }()

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.cfg.Bucket),
		Prefix:    aws.String(b.fullPath(path)),
		Delimiter: aws.String("/"),
	}
	if args.Limit > 0 {
		input.MaxKeys = aws.Int32(int32(args.Limit))
	}

	return accessor.RpList{}, &pageLister{client: b.client, input: input, prefix: b.cfg.Prefix, limit: args.Limit}, nil
}

func (b *Backend) Read(ctx context.Context, path string, args accessor.OpRead) (rp accessor.RpRead, reader accessor.Reader, err error) {
	defer func() { b.trace("Read", path, err) }()

	rangeEnd := ""
	if args.RangeSize != nil {
		rangeEnd = fmt.Sprintf("%d", args.RangeOffset+*args.RangeSize-1)
	}
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.fullPath(path)),
	}
	if args.RangeOffset != 0 || args.RangeSize != nil {
		input.Range = aws.String(fmt.Sprintf("bytes=%d-%s", args.RangeOffset, rangeEnd))
	}

	out, err := b.client.GetObject(ctx, input)
	if err != nil {
		return accessor.RpRead{}, nil, translateErr(err, path)
	}

	buf, err := io.ReadAll(out.Body)
	_ = out.Body.Close()
	if err != nil {
		return accessor.RpRead{}, nil, accessor.NewError(accessor.KindUnexpected, "reading s3 object body").WithCause(err)
	}

	return accessor.RpRead{}, &bodyReader{content: buf}, nil
}

func (b *Backend) Write(ctx context.Context, path string, args accessor.OpWrite) (accessor.RpWrite, accessor.Writer, error) {
	if args.Append {
		return accessor.RpWrite{}, nil, accessor.NewError(accessor.KindUnsupported, "s3 backend has no native write_can_append")
	}
	return accessor.RpWrite{}, &objectWriter{backend: b, path: path}, nil
}

func (b *Backend) Delete(ctx context.Context) (accessor.RpDelete, accessor.Deleter, error) {
	return accessor.RpDelete{}, &objectDeleter{backend: b}, nil
}

func (b *Backend) Presign(ctx context.Context, path string, args accessor.OpPresign) (rp accessor.RpPresign, err error) {
	defer func() { b.trace("Presign", path, err) }()

	presignClient := s3.NewPresignClient(b.client)
	method := args.Method
	if method == "" {
		method = http.MethodGet
	}

	switch method {
	case http.MethodGet:
		req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.cfg.Bucket),
			Key:    aws.String(b.fullPath(path)),
		})
		if err != nil {
			return accessor.RpPresign{}, accessor.NewError(accessor.KindUnexpected, "presigning GET").WithCause(err)
		}
		return accessor.RpPresign{URL: req.URL, Method: req.Method, Header: flattenHeader(req.SignedHeader)}, nil
	case http.MethodPut:
		req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(b.cfg.Bucket),
			Key:    aws.String(b.fullPath(path)),
		})
		if err != nil {
			return accessor.RpPresign{}, accessor.NewError(accessor.KindUnexpected, "presigning PUT").WithCause(err)
		}
		return accessor.RpPresign{URL: req.URL, Method: req.Method, Header: flattenHeader(req.SignedHeader)}, nil
	default:
		return accessor.RpPresign{}, accessor.NewError(accessor.KindUnsupported, "s3 backend only presigns GET and PUT")
	}
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func trimETag(etag string) string {
	return strings.Trim(etag, "\"")
}

func translateErr(err error, path string) error {
	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return accessor.NewError(accessor.KindNotFound, "no such object: "+path).WithCause(err)
	}
	var httpErr *awshttp.ResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == http.StatusNotFound {
		return accessor.NewError(accessor.KindNotFound, "no such object: "+path).WithCause(err)
	}
	return accessor.NewError(accessor.KindUnexpected, "s3 operation failed").WithCause(err)
}

type bodyReader struct {
	content []byte
	sent    bool
}

func (r *bodyReader) Read(ctx context.Context) ([]byte, error) {
	if r.sent {
		return nil, nil
	}
	r.sent = true
	return r.content, nil
}

// pageLister walks ListObjectsV2 continuation tokens one page at a time,
// yielding common prefixes (as directory entries) before file entries on
// each page — matching the ordering backend_s3's listDirectory produces.
type pageLister struct {
	client *s3.Client
	input  *s3.ListObjectsV2Input
	prefix string
	limit  int

	buffered []accessor.Entry
	pos      int
	done     bool
	emitted  int
}

func (l *pageLister) Next(ctx context.Context) (*accessor.Entry, error) {
	for l.pos >= len(l.buffered) {
		if l.done {
			return nil, nil
		}
		if l.limit > 0 && l.emitted >= l.limit {
			return nil, nil
		}
		if err := l.fetchPage(ctx); err != nil {
			return nil, err
		}
	}
	e := l.buffered[l.pos]
	l.pos++
	l.emitted++
	return &e, nil
}

func (l *pageLister) fetchPage(ctx context.Context) error {
	out, err := l.client.ListObjectsV2(ctx, l.input)
	if err != nil {
		return accessor.NewError(accessor.KindUnexpected, "listing s3 objects").WithCause(err)
	}

	fullPrefix := aws.ToString(l.input.Prefix)
	l.buffered = nil
	l.pos = 0

	for _, cp := range out.CommonPrefixes {
		l.buffered = append(l.buffered, accessor.Entry{
			Path: strings.TrimPrefix(aws.ToString(cp.Prefix), l.prefix),
			Meta: accessor.NewDirMetadata(),
		})
	}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if key == fullPrefix {
			continue // the directory marker object itself, not a child
		}
		meta := accessor.NewFileMetadata(uint64(aws.ToInt64(obj.Size)))
		if obj.LastModified != nil {
			meta = meta.WithLastModified(*obj.LastModified)
		}
		if obj.ETag != nil {
			meta.ContentHash = trimETag(*obj.ETag)
		}
		l.buffered = append(l.buffered, accessor.Entry{Path: strings.TrimPrefix(key, l.prefix), Meta: meta})
	}

	if out.IsTruncated != nil && *out.IsTruncated {
		l.input.ContinuationToken = out.NextContinuationToken
	} else {
		l.done = true
	}
	return nil
}

// objectWriter buffers an entire object in memory and issues a single
// PutObject on Close; S3 has no append and no partial-write visibility, so
// there is nothing to stream incrementally without multipart upload.
type objectWriter struct {
	backend *Backend
	path    string
	buf     bytes.Buffer
}

func (w *objectWriter) Write(ctx context.Context, chunk []byte) error {
	w.buf.Write(chunk)
	return nil
}

func (w *objectWriter) Close(ctx context.Context) (accessor.Metadata, error) {
	_, err := w.backend.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.backend.cfg.Bucket),
		Key:    aws.String(w.backend.fullPath(w.path)),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return accessor.Metadata{}, accessor.NewError(accessor.KindUnexpected, "s3 PutObject failed").WithCause(err)
	}
	// ContentLength left at 0 so the completion layer substitutes its own
	// tally; PutObjectOutput carries no reliable echoed length.
	return accessor.Metadata{Mode: accessor.ModeFile}, nil
}

func (w *objectWriter) Abort(ctx context.Context) error {
	w.buf.Reset()
	return nil
}

type objectDeleter struct {
	backend *Backend
}

func (d *objectDeleter) Delete(ctx context.Context, path string) error {
	_, err := d.backend.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.backend.cfg.Bucket),
		Key:    aws.String(d.backend.fullPath(path)),
	})
	if err != nil {
		return translateErr(err, path)
	}
	return nil
}
