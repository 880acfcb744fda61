package inspect

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/imagespy/inspect/image"
	"github.com/imagespy/inspect/layer"
	"github.com/imagespy/inspect/reference"
	"github.com/imagespy/inspect/registry"
	"github.com/imagespy/inspect/registry/mock"
	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLayer0 = image.Media{MediaType: image.MediaTypeLayer, Size: 10, Digest: digest.FromString("layer 0")}
	testLayer1 = image.Media{MediaType: image.MediaTypeLayer, Size: 20, Digest: digest.FromString("layer 1")}
)

func testManifest() *image.Manifest {
	m := &image.Manifest{
		Config: image.Media{MediaType: image.MediaTypeConfig, Digest: digest.FromString("config")},
		Layers: []image.Media{testLayer0, testLayer1},
	}
	m.SchemaVersion = image.SchemaVersion
	return m
}

func newTestInspector(r Registry) *Inspector {
	i := New(reference.NewParser(reference.Options{DefaultHost: "unit.test"}), r)
	i.idFunc = func() string { return "run-1" }
	return i
}

func TestInspector_Inspect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ref, err := reference.Parse("unit.test/ns/app:v1")
	require.NoError(t, err)
	token := registry.Token{Value: "abc"}
	m := testManifest()
	cfg := &image.Config{Architecture: image.Amd64, OS: image.Linux}

	reg := mock.NewMockRegistry(ctrl)
	gomock.InOrder(
		reg.EXPECT().
			Token(gomock.Any(), gomock.Eq(ref)).
			Return(token, nil),
		reg.EXPECT().
			Manifest(gomock.Any(), gomock.Eq(ref), gomock.Eq(token)).
			Return(m, nil),
		reg.EXPECT().
			ConfigOf(gomock.Any(), gomock.Eq(ref), gomock.Eq(token), gomock.Eq(m)).
			Return(cfg, nil),
	)

	s, err := newTestInspector(reg).Inspect(context.Background(), "ns/app:v1")

	require.NoError(t, err)
	assert.Equal(t, "run-1", s.ID)
	assert.Equal(t, ref, s.Reference)
	assert.Equal(t, m, s.Manifest)
	assert.Equal(t, cfg, s.Config)
}

func TestInspector_Inspect_Failures(t *testing.T) {
	ref, err := reference.Parse("unit.test/ns/app:v1")
	require.NoError(t, err)
	failure := errors.New("failure")

	testcases := []struct {
		name   string
		input  string
		expect func(reg *mock.MockRegistry)
	}{
		{
			name:   "When the reference cannot be parsed no request is issued",
			input:  "unit.test/ns/app?x=1",
			expect: func(reg *mock.MockRegistry) {},
		},
		{
			name:  "When the token request fails the manifest is not requested",
			input: "ns/app:v1",
			expect: func(reg *mock.MockRegistry) {
				reg.EXPECT().Token(gomock.Any(), gomock.Eq(ref)).Return(registry.Token{}, failure)
			},
		},
		{
			name:  "When the manifest request fails the config is not requested",
			input: "ns/app:v1",
			expect: func(reg *mock.MockRegistry) {
				reg.EXPECT().Token(gomock.Any(), gomock.Eq(ref)).Return(registry.Token{Value: "abc"}, nil)
				reg.EXPECT().Manifest(gomock.Any(), gomock.Eq(ref), gomock.Any()).Return(nil, failure)
			},
		},
		{
			name:  "When the config request fails no session is returned",
			input: "ns/app:v1",
			expect: func(reg *mock.MockRegistry) {
				reg.EXPECT().Token(gomock.Any(), gomock.Eq(ref)).Return(registry.Token{Value: "abc"}, nil)
				reg.EXPECT().Manifest(gomock.Any(), gomock.Eq(ref), gomock.Any()).Return(testManifest(), nil)
				reg.EXPECT().ConfigOf(gomock.Any(), gomock.Eq(ref), gomock.Any(), gomock.Any()).Return(nil, failure)
			},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			reg := mock.NewMockRegistry(ctrl)
			tc.expect(reg)

			s, err := newTestInspector(reg).Inspect(context.Background(), tc.input)

			assert.Nil(t, s)
			assert.Error(t, err)
		})
	}
}

func TestInspector_Inspect_ParseError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, err := newTestInspector(mock.NewMockRegistry(ctrl)).Inspect(context.Background(), "")

	var parseErr *reference.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestSession_Layer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ref, err := reference.Parse("unit.test/ns/app:v1")
	require.NoError(t, err)
	token := registry.Token{Value: "abc"}
	catalog := layer.Catalog{{Name: "etc", FullPath: "/etc", Kind: layer.Directory{}}}

	reg := mock.NewMockRegistry(ctrl)
	reg.EXPECT().Token(gomock.Any(), gomock.Any()).Return(token, nil)
	reg.EXPECT().Manifest(gomock.Any(), gomock.Any(), gomock.Any()).Return(testManifest(), nil)
	reg.EXPECT().ConfigOf(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&image.Config{}, nil)
	reg.EXPECT().
		Layer(gomock.Any(), gomock.Eq(ref), gomock.Eq(token), gomock.Eq(testLayer1)).
		Return(catalog, nil)

	s, err := newTestInspector(reg).Inspect(context.Background(), "ns/app:v1")
	require.NoError(t, err)

	c, err := s.Layer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, catalog, c)

	c, err = s.Layer(context.Background(), 2)
	assert.Nil(t, c)
	assert.Error(t, err)
}

func TestSession_FindLayer(t *testing.T) {
	s := &Session{Manifest: testManifest()}

	testcases := []struct {
		name          string
		sel           string
		expectedIndex int
		expectedErr   bool
	}{
		{name: "When the selector is a valid index", sel: "1", expectedIndex: 1},
		{name: "When the selector is an index out of range", sel: "2", expectedErr: true},
		{name: "When the selector is a negative index", sel: "-1", expectedErr: true},
		{name: "When the selector is a digest of a layer", sel: testLayer1.Digest.String(), expectedIndex: 1},
		{name: "When the selector is an unknown digest", sel: digest.FromString("other").String(), expectedErr: true},
		{name: "When the selector is neither index nor digest", sel: "top", expectedErr: true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			i, err := s.FindLayer(tc.sel)
			if tc.expectedErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedIndex, i)
		})
	}
}
