package classifier

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hdx-tools/pcode-detector/internal/archive"
	"github.com/hdx-tools/pcode-detector/internal/geo"
	"github.com/hdx-tools/pcode-detector/internal/loader"
	"github.com/hdx-tools/pcode-detector/internal/model"
	"github.com/hdx-tools/pcode-detector/internal/store"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) SetPCoded(ctx context.Context, resourceID string, pcoded bool) error {
	return m.Called(ctx, resourceID, pcoded).Error(0)
}

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	args := m.Called(ctx, rawURL, dir)
	return args.String(0), args.Error(1)
}

func (m *mockDownloader) ContentLength(ctx context.Context, rawURL string) (int64, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(int64), args.Error(1)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, path, ext, scratchRoot string) archive.Result {
	return m.Called(ctx, path, ext, scratchRoot).Get(0).(archive.Result)
}

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, sources []geo.Source, ext string, maxRows int) ([]loader.Unit, error) {
	args := m.Called(ctx, sources, ext, maxRows)
	units, _ := args.Get(0).([]loader.Unit)
	return units, args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Notify(ctx context.Context, msg string) {
	m.Called(ctx, msg)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Record(ctx context.Context, rec *store.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) Latest(ctx context.Context, resourceID string) (*store.Record, error) {
	args := m.Called(ctx, resourceID)
	rec, _ := args.Get(0).(*store.Record)
	return rec, args.Error(1)
}

func (m *mockStore) List(ctx context.Context, filter store.Filter) ([]store.Record, error) {
	args := m.Called(ctx, filter)
	recs, _ := args.Get(0).([]store.Record)
	return recs, args.Error(1)
}

func (m *mockStore) Counts(ctx context.Context, since time.Time) (map[model.Verdict]int, error) {
	args := m.Called(ctx, since)
	counts, _ := args.Get(0).(map[model.Verdict]int)
	return counts, args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockStore) Close() error { return m.Called().Error(0) }
