package controllers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imagedataextract/ImageDataExtract/internal/pkg/blobstore"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/cleanup"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/fetch"
	"github.com/imagedataextract/ImageDataExtract/internal/pkg/metadata"
)

const testBaseURL = "https://cdn.example.test/"

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) (*blobstore.Object, error) {
	if s.putErr != nil {
		return nil, s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return &blobstore.Object{Key: key, URL: testBaseURL + key, Size: size, ContentType: contentType, UploadedAt: time.Now()}, nil
}

func (s *fakeStore) List(context.Context, string) ([]blobstore.Object, error) {
	return nil, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) KeyFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, testBaseURL) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, testBaseURL), true
}

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) Verify(context.Context, string, string) error {
	v.calls++
	return v.err
}

type fakeFetcher struct {
	result *fetch.Result
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(context.Context, string) (*fetch.Result, error) {
	f.calls++
	return f.result, f.err
}

type extractorFunc func(ctx context.Context, fileName string, data []byte) (*metadata.Report, error)

func (f extractorFunc) Extract(ctx context.Context, fileName string, data []byte) (*metadata.Report, error) {
	return f(ctx, fileName, data)
}

type fakeSweeper struct {
	result *cleanup.Result
	err    error
}

func (s *fakeSweeper) Run(context.Context) (*cleanup.Result, error) {
	return s.result, s.err
}

type fakeJobs struct {
	keys []string
	err  error
}

func (j *fakeJobs) ScheduleBlobDelete(_ context.Context, key string) error {
	if j.err != nil {
		return j.err
	}
	j.keys = append(j.keys, key)
	return nil
}

type memCache struct {
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (m *memCache) Get(key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(key string, value interface{}, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		return errors.New("unsupported value")
	}
	return nil
}

// canonJPEG returns a small JPEG whose EXIF IFD0 carries Make=Canon and Model=EOS 5D.
func canonJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	jpg := buf.Bytes()

	le := binary.LittleEndian
	strs := []struct {
		tag uint16
		val string
	}{
		{0x010F, "Canon"},
		{0x0110, "EOS 5D"},
	}
	dataOff := 8 + 2 + 12*len(strs) + 4

	var tiff, data bytes.Buffer
	tiff.WriteString("II")
	_ = binary.Write(&tiff, le, uint16(42))
	_ = binary.Write(&tiff, le, uint32(8))
	_ = binary.Write(&tiff, le, uint16(len(strs)))
	for _, s := range strs {
		v := append([]byte(s.val), 0)
		_ = binary.Write(&tiff, le, s.tag)
		_ = binary.Write(&tiff, le, uint16(2))
		_ = binary.Write(&tiff, le, uint32(len(v)))
		_ = binary.Write(&tiff, le, uint32(dataOff+data.Len()))
		data.Write(v)
	}
	_ = binary.Write(&tiff, le, uint32(0))
	tiff.Write(data.Bytes())

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := append([]byte{}, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounter() *memCounter { return &memCounter{counts: map[string]int64{}} }

func (m *memCounter) Add(event string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[event] += n
}
