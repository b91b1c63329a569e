package tracepipeline

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"manifold/internal/fileblob"
	"manifold/internal/otelspan"
	"manifold/internal/repository"
)

// fileExtractor rewrites inline base64 payloads in content blocks into
// content-addressed file references, bounded to
// FilesMaxConcurrentFinalization concurrent finalizations per batch
// (spec.md §4.3 persist step 1).
type fileExtractor struct {
	store *fileblob.Store
	files repository.FileRepository
}

// inlinePayload returns the (mime, raw bytes) an image/audio/video/
// document block carries inline, and whether it's large enough to be
// worth extracting (spec.md's 1 KiB threshold).
func inlinePayload(b otelspan.ContentBlock) (mime string, data []byte, ok bool) {
	switch b.Kind {
	case otelspan.BlockImage, otelspan.BlockAudio, otelspan.BlockVideo, otelspan.BlockDocument, otelspan.BlockDataRef:
	default:
		return "", nil, false
	}
	if b.URI == "" {
		return "", nil, false
	}

	raw := b.URI
	mime = b.MediaType
	if strings.HasPrefix(raw, "data:") {
		rest := raw[len("data:"):]
		idx := strings.Index(rest, ";base64,")
		if idx < 0 {
			return "", nil, false
		}
		mime = rest[:idx]
		raw = rest[idx+len(";base64,"):]
	} else if mime == "" {
		// Not a data URL and no media type recorded: treat as an
		// external reference the block already carries, not inline data.
		return "", nil, false
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", nil, false
	}
	if len(decoded) < minInlineDataBytes {
		return "", nil, false
	}
	return mime, decoded, true
}

// extract scans every block of every message for inline payloads,
// finalizes each into the file store, and rewrites the block's URI to
// the "#!B64!#[mime]::hash" marker in place.
func (f *fileExtractor) extract(ctx context.Context, projectID string, messages []otelspan.RawMessage) error {
	type target struct {
		block *otelspan.ContentBlock
		mime  string
		data  []byte
	}
	var targets []target
	for i := range messages {
		for j := range messages[i].Content {
			b := &messages[i].Content[j]
			if mime, data, ok := inlinePayload(*b); ok {
				targets = append(targets, target{block: b, mime: mime, data: data})
			}
		}
	}
	if len(targets) == 0 {
		return nil
	}

	sem := make(chan struct{}, FilesMaxConcurrentFinalization)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, t := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(t target) {
			defer wg.Done()
			defer func() { <-sem }()

			hash, marker, err := f.store.Put(ctx, t.mime, t.data)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if err := f.files.UpsertFile(ctx, repository.FileRow{
				ProjectID:   projectID,
				ContentHash: hash,
				MediaType:   t.mime,
				SizeBytes:   int64(len(t.data)),
				StoragePath: hash,
			}); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			mu.Lock()
			t.block.URI = marker
			t.block.Data = nil
			mu.Unlock()
		}(t)
	}

	wg.Wait()
	return firstErr
}
