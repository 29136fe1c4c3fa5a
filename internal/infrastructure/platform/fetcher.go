package platform

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	domain "github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/infrastructure/config"
)

// maxLineSize bounds a single JSONL line. Platform records are flat, so a
// line beyond this is corrupt, not merely large.
const maxLineSize = 4 * 1024 * 1024 // 4MB

// ArchiveSink stores a raw export payload for later reprocessing or audit
type ArchiveSink interface {
	Store(ctx context.Context, key string, r io.Reader) error
}

// JSONLFetcher implements the domain's ResultFetcher port: it downloads a
// completed export's JSONL payload and yields decoded records lazily.
// When an archive sink is configured, the raw bytes are teed into it while
// the stream is consumed.
type JSONLFetcher struct {
	httpClient *http.Client
	threshold  float64
	minLines   int
	archive    ArchiveSink
	logger     *zap.Logger
}

// NewJSONLFetcher creates a result fetcher. archive may be nil.
func NewJSONLFetcher(platformCfg *config.PlatformConfig, ingestCfg *config.IngestConfig, archive ArchiveSink, logger *zap.Logger) *JSONLFetcher {
	return &JSONLFetcher{
		httpClient: &http.Client{
			Timeout: platformCfg.FetchTimeout,
		},
		threshold: ingestCfg.ParseErrorThreshold,
		minLines:  ingestCfg.ParseErrorMinLines,
		archive:   archive,
		logger:    logger,
	}
}

// Fetch opens the result URL and returns a lazy record stream
func (f *JSONLFetcher) Fetch(ctx context.Context, url string) (domain.RecordStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrFetch, resp.StatusCode)
	}
	if err := validateContentType(resp.Header.Get("Content-Type")); err != nil {
		resp.Body.Close()
		return nil, err
	}

	stream := &jsonlStream{
		body:      resp.Body,
		threshold: f.threshold,
		minLines:  f.minLines,
		logger:    f.logger,
	}

	reader := io.Reader(resp.Body)
	if f.archive != nil {
		pr, pw := io.Pipe()
		reader = io.TeeReader(resp.Body, pw)
		done := make(chan struct{})
		stream.archiveDone = done
		stream.archivePipe = pw

		key := archiveKey(url)
		go func() {
			defer close(done)
			if err := f.archive.Store(ctx, key, pr); err != nil {
				// Archival is best effort; the ingest result is authoritative
				f.logger.Warn("failed to archive export payload",
					zap.String("key", key),
					zap.Error(err))
				io.Copy(io.Discard, pr)
			}
		}()
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	stream.scanner = scanner

	return stream, nil
}

// jsonlStream decodes one record per line, skipping and counting malformed
// lines. It aborts with ErrDataIntegrity once the skip ratio crosses the
// threshold with enough lines observed to make the ratio meaningful.
type jsonlStream struct {
	scanner   *bufio.Scanner
	body      io.Closer
	threshold float64
	minLines  int

	lines   int
	skipped int

	archivePipe *io.PipeWriter
	archiveDone chan struct{}

	logger *zap.Logger
}

// Next returns the next record, or io.EOF when the stream is exhausted
func (s *jsonlStream) Next() (*domain.Record, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.lines++

		rec, err := domain.DecodeRecord(line)
		if err != nil {
			s.skipped++
			s.logger.Warn("skipping malformed export line",
				zap.Int("line", s.lines),
				zap.Error(err))
			if err := s.checkIntegrity(); err != nil {
				return nil, err
			}
			continue
		}
		return rec, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	return nil, io.EOF
}

// checkIntegrity enforces the parse-error threshold
func (s *jsonlStream) checkIntegrity() error {
	if s.lines < s.minLines || s.threshold <= 0 {
		return nil
	}
	ratio := float64(s.skipped) / float64(s.lines)
	if ratio > s.threshold {
		return fmt.Errorf("%w: %d of %d lines malformed", domain.ErrDataIntegrity, s.skipped, s.lines)
	}
	return nil
}

// Skipped returns the number of malformed lines skipped so far
func (s *jsonlStream) Skipped() int {
	return s.skipped
}

// Close releases the HTTP body and waits for any in-flight archival
func (s *jsonlStream) Close() error {
	err := s.body.Close()
	if s.archivePipe != nil {
		s.archivePipe.Close()
		<-s.archiveDone
	}
	return err
}

// validateContentType rejects responses that are clearly not a JSONL payload.
// Signed storage URLs commonly serve application/octet-stream, so only media
// types that indicate a different document altogether (an HTML error page,
// an XML fault body) are refused. A missing header is accepted.
func validateContentType(header string) error {
	if header == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return fmt.Errorf("%w: malformed content type %q", domain.ErrFetch, header)
	}
	switch mediaType {
	case "application/jsonl", "application/x-ndjson", "application/json",
		"application/octet-stream", "text/plain":
		return nil
	}
	return fmt.Errorf("%w: unexpected content type %q", domain.ErrFetch, mediaType)
}

// archiveKey derives a stable object key from the result URL
func archiveKey(url string) string {
	// Strip the query string; signed URLs carry volatile credentials there
	for i := 0; i < len(url); i++ {
		if url[i] == '?' {
			url = url[:i]
			break
		}
	}
	// Keep the last two path segments, typically <operation>/<file>.jsonl
	slash := 0
	for i := len(url) - 1; i >= 0 && slash < 2; i-- {
		if url[i] == '/' {
			slash++
			if slash == 2 {
				return "exports/" + url[i+1:]
			}
		}
	}
	return "exports/" + url
}
