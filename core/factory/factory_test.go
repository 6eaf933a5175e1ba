package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type station struct {
	ID    string
	Speed float64
}

type stationConf struct {
	ID    string  `json:"id"`
	Speed float64 `json:"speed"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*station]()
	require.NoError(t, reg.Register("s", func(conf map[string]any) (*station, error) {
		var c stationConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &station{ID: c.ID, Speed: c.Speed}, nil
	}))
	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"id": "mill", "speed": "2.5"}})
	require.NoError(t, err)
	assert.Equal(t, &station{ID: "mill", Speed: 2.5}, inst)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))

	_, err := reg.Create(ModuleConfig{Type: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[x]")
	assert.Equal(t, []string{"x"}, reg.Types())
}
