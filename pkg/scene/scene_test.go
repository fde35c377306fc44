package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-interactive-raytracer/pkg/core"
	"github.com/df07/go-interactive-raytracer/pkg/geometry"
)

func TestBuiltinScenes(t *testing.T) {
	assert.Equal(t, []string{DefaultName, SingleSphereName, SphereGridName}, Names())

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s, err := Builtin(name)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name)
			assert.NotEmpty(t, s.Description)
			require.NotNil(t, s.Root)
			require.NotNil(t, s.Sky)

			// The camera must see something: the centre ray hits the scene
			ray := s.Camera.PrimaryRay(0, 0)
			hit := geometry.NewIntersection()
			assert.True(t, s.Root.ClosestHit(ray, &hit), "centre ray should hit the scene")
		})
	}

	_, err := Builtin("nope")
	assert.ErrorIs(t, err, ErrUnknownScene)
}

func TestDefaultScene(t *testing.T) {
	s := NewDefaultScene()

	group, ok := s.Root.(*geometry.Group)
	require.True(t, ok)
	assert.Equal(t, 3, group.Len())

	assertVecNear(t, core.NewVec3(10, 10, 10), s.Camera.Location)
	assertVecNear(t, core.NewVec3(-1, -1, -1).Normalize(), s.Camera.Forward)

	// Looking straight down from above the blue sphere hits its top
	hit := geometry.NewIntersection()
	require.True(t, s.Root.ClosestHit(core.NewRay(core.NewVec3(0, 5, 0), core.NewVec3(0, -1, 0)), &hit))
	assert.InDelta(t, 4, hit.Distance, 1e-5)
	assert.Equal(t, "#4c77cc", hit.Material.Hex())
}

func TestSphereGridNesting(t *testing.T) {
	s := NewSphereGridScene()

	root := s.Root.(*geometry.Group)
	grid := root.Shapes()[0].(*geometry.Group)
	assert.Equal(t, 10, grid.Len())
	for _, row := range grid.Shapes() {
		assert.Equal(t, 10, row.(*geometry.Group).Len())
	}
}

func TestOKLCHToRGB(t *testing.T) {
	// Zero chroma is a neutral grey
	grey := oklchToRGB(0.65, 0, 0)
	assert.InDelta(t, grey.X, grey.Y, 1e-4)
	assert.InDelta(t, grey.Y, grey.Z, 1e-4)

	for hue := float32(0); hue < 360; hue += 30 {
		c := oklchToRGB(0.65, 0.25, hue)
		assert.Equal(t, c, c.Clamp(0, 1), "hue %v must stay in gamut", hue)
	}
}

func TestResolve(t *testing.T) {
	s, err := Resolve(SingleSphereName)
	require.NoError(t, err)
	assert.Equal(t, SingleSphereName, s.Name)

	path := filepath.Join(t.TempDir(), "tiny.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tinyScene), 0o644))

	s, err = Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", s.Name)
	assert.Equal(t, path, s.Path)

	_, err = Resolve("missing-scene")
	assert.ErrorIs(t, err, ErrUnknownScene)

	_, err = Resolve(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrUnknownScene)
}

func TestResolveIn(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "tiny.yaml")
	require.NoError(t, os.WriteFile(inside, []byte(tinyScene), 0o644))

	outsideDir := t.TempDir()
	outside := filepath.Join(outsideDir, "private.yaml")
	require.NoError(t, os.WriteFile(outside, []byte(tinyScene), 0o644))

	t.Run("builtin", func(t *testing.T) {
		s, err := ResolveIn(dir, DefaultName)
		require.NoError(t, err)
		assert.Equal(t, DefaultName, s.Name)
	})

	t.Run("file in dir", func(t *testing.T) {
		for _, name := range []string{inside, "tiny.yaml", "./sub/../tiny.yaml"} {
			s, err := ResolveIn(dir, name)
			require.NoError(t, err, name)
			assert.Equal(t, inside, s.Path)
		}
	})

	linked := filepath.Join(dir, "linked.yaml")
	symlinked := os.Symlink(outside, linked) == nil

	tests := []struct {
		name string
		path string
		skip bool
	}{
		{"absolute outside", outside, false},
		{"relative escape", filepath.Join("..", filepath.Base(outsideDir), "private.yaml"), false},
		{"home", "~/private.yaml", false},
		{"missing", "absent.yaml", false},
		{"not a scene file", "tiny.txt", false},
		{"symlink out", "linked.yaml", !symlinked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.skip {
				t.Skip("symlinks unavailable")
			}
			_, err := ResolveIn(dir, tt.path)
			assert.ErrorIs(t, err, ErrUnknownScene)
		})
	}

	_, err := ResolveIn("", inside)
	assert.ErrorIs(t, err, ErrUnknownScene)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/scenes/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "scenes", "a.yaml"), got)

	got, err = ExpandPath("relative/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "relative/a.yaml", got)
}

func assertVecNear(t *testing.T, expected, actual core.Vec3) {
	t.Helper()
	if expected.Subtract(actual).Length() > 1e-5 {
		t.Errorf("Expected %v, got %v", expected, actual)
	}
}
