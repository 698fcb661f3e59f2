package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
	"github.com/claw-gang/amendment-diff/internal/testutil"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

func newParser(stub *testutil.StubProvider, workers int, rec tracing.Recorder) *Parser {
	inv := llm.NewInvoker(stub, llm.WithRecorder(rec))
	chain := llm.NewChain(testutil.VisionModel, nil, "")
	return New(NewExtractor(inv, chain), workers, WithRecorder(rec))
}

func TestList_SortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	testutil.WritePage(t, nil, dir, "b.png", 2, "")
	testutil.WritePage(t, nil, dir, "a.png", 1, "")
	testutil.WritePage(t, nil, dir, "c.scan", 3, "") // sniffed as png
	testutil.WritePage(t, nil, dir, ".hidden.png", 4, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not really"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	docs, err := List(dir)
	require.NoError(t, err)

	var names []string
	for i, d := range docs {
		names = append(names, d.Name)
		assert.Equal(t, i+1, d.Ordinal)
	}
	assert.Equal(t, []string{"a.png", "b.png", "broken.jpg", "c.scan"}, names)
	assert.Equal(t, "image/png", docs[3].MIMEType)
	assert.Equal(t, "image/jpeg", docs[2].MIMEType)
}

func TestList_NoImages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o644))

	_, err := List(dir)
	assert.True(t, errors.Is(err, domain.ErrNoImagesFound))

	_, err = List(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, domain.ErrNoImagesFound))
}

func TestParseFolder_OrderUnderRandomLatency(t *testing.T) {
	dir := t.TempDir()
	stub := testutil.NewStubProvider().WithJitter(15 * time.Millisecond)
	const n = 12
	for i := 1; i <= n; i++ {
		testutil.WritePage(t, stub, dir, fmt.Sprintf("page_%02d.png", i), i, fmt.Sprintf("text of page %d", i))
	}
	p := newParser(stub, 4, nil)

	got, err := p.ParseFolder(context.Background(), domain.SideOriginal, dir, "c-1")
	require.NoError(t, err)
	assert.Equal(t, n, got.PageCount)
	require.Len(t, got.Segments, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("text of page %d", i+1), got.Segments[i])
		assert.Equal(t, domain.PageExtracted, got.Pages[i].Status)
	}

	last := -1
	for i := 1; i <= n; i++ {
		header := domain.PageHeader(i, n, fmt.Sprintf("page_%02d.png", i))
		idx := strings.Index(got.Text, strings.TrimLeft(header, "\n"))
		require.GreaterOrEqual(t, idx, 0, "missing header for page %d", i)
		assert.Greater(t, idx, last)
		last = idx
	}
	assert.True(t, strings.HasPrefix(got.Text, "===== PAGE 1/12: page_01.png ====="))
}

func TestParseFolder_SinglePageFailure(t *testing.T) {
	dir := t.TempDir()
	stub := testutil.NewStubProvider()
	testutil.WritePage(t, stub, dir, "1.png", 1, "first")
	testutil.WritePage(t, nil, dir, "2.png", 2, "") // unscripted: every model rejects it
	testutil.WritePage(t, stub, dir, "3.png", 3, "third")
	mem := tracing.NewMemory()
	p := newParser(stub, 2, mem)

	got, err := p.ParseFolder(context.Background(), domain.SideAmendment, dir, "c-1")
	require.NoError(t, err)
	require.Len(t, got.Segments, 3)
	assert.Equal(t, "first", got.Segments[0])
	assert.Equal(t, "third", got.Segments[2])
	assert.True(t, strings.HasPrefix(got.Segments[1], "[PAGE 2 EXTRACTION FAILED:"))
	assert.Contains(t, got.Text, got.Segments[1])
	assert.Equal(t, []int{2}, got.FailedPages())
	assert.Equal(t, domain.PageFailed, got.Pages[1].Status)
	assert.Equal(t, 2, got.Pages[1].Attempts)

	pageSpans := mem.ByName("parse_page")
	assert.Len(t, pageSpans, 3)
}

func TestParseFolder_PrimaryDownUsesFallback(t *testing.T) {
	dir := t.TempDir()
	stub := testutil.NewStubProvider().FailModel(testutil.VisionModel, nil)
	testutil.WritePage(t, stub, dir, "1.png", 1, "one")
	testutil.WritePage(t, stub, dir, "2.png", 2, "two")
	p := newParser(stub, 4, nil)

	got, err := p.ParseFolder(context.Background(), domain.SideOriginal, dir, "c-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, got.Segments)
	assert.Equal(t, []int{1, 2}, got.FallbackPages())
	assert.Empty(t, got.FailedPages())
	assert.Equal(t, llm.DefaultFallbackModel, got.Pages[0].Model)
	assert.Equal(t, 2, stub.CallsFor(llm.DefaultFallbackModel))
}

func TestParseDocuments_SharedPoolBound(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	var mu sync.Mutex
	var inFlight, peak int
	provider := llm.ProviderFunc(func(ctx context.Context, call llm.Call) (string, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok", nil
	})
	for i := 1; i <= 6; i++ {
		testutil.WritePage(t, nil, dirA, fmt.Sprintf("%d.png", i), i, "")
		testutil.WritePage(t, nil, dirB, fmt.Sprintf("%d.png", i), 100+i, "")
	}
	p := New(NewExtractor(llm.NewInvoker(provider), llm.NewChain("x/vision", nil, "")), 3)

	errc := make(chan error, 2)
	for _, d := range []string{dirA, dirB} {
		go func() {
			_, err := p.ParseFolder(context.Background(), domain.SideOriginal, d, "c-1")
			errc <- err
		}()
	}
	require.NoError(t, <-errc)
	require.NoError(t, <-errc)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 3)
}

func TestParseDocuments_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	stub := testutil.NewStubProvider().WithJitter(50 * time.Millisecond)
	for i := 1; i <= 3; i++ {
		testutil.WritePage(t, stub, dir, fmt.Sprintf("%d.png", i), i, "x")
	}
	p := newParser(stub, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ParseFolder(ctx, domain.SideOriginal, dir, "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseDocuments_Empty(t *testing.T) {
	p := newParser(testutil.NewStubProvider(), 1, nil)
	_, err := p.ParseDocuments(context.Background(), domain.SideOriginal, "x", nil, "c-1")
	assert.True(t, errors.Is(err, domain.ErrNoImagesFound))
}
