package geometry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromLines(t *testing.T) {
	assert.Nil(t, FromLines(nil))

	single := FromLines([]Line{{{1, 2}, {3, 4}}})
	require.NotNil(t, single)
	assert.Equal(t, TypeLineString, single.Type)

	multi := FromLines([]Line{{{1, 2}}, {{3, 4}}})
	require.NotNil(t, multi)
	assert.Equal(t, TypeMultiLineString, multi.Type)
	assert.Equal(t, 2, multi.PositionCount())
}

func TestGeometryJSON(t *testing.T) {
	tests := []struct {
		name string
		geom *Geometry
		want string
	}{
		{
			name: "nil",
			geom: nil,
			want: `null`,
		},
		{
			name: "line string",
			geom: NewLineString(Line{{4.35, 50.85}, {4.36, 50.86}}),
			want: `{"type":"LineString","coordinates":[[4.35,50.85],[4.36,50.86]]}`,
		},
		{
			name: "multi line string",
			geom: NewMultiLineString([]Line{{{1, 2}, {3, 4}}, {{5, 6}}}),
			want: `{"type":"MultiLineString","coordinates":[[[1,2],[3,4]],[[5,6]]]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.geom)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))

			if tt.geom == nil {
				return
			}
			var back Geometry
			require.NoError(t, json.Unmarshal(raw, &back))
			assert.Equal(t, *tt.geom, back)
		})
	}
}

func TestGeometryJSONErrors(t *testing.T) {
	_, err := json.Marshal(&Geometry{Type: TypeLineString})
	assert.Error(t, err)

	_, err = json.Marshal(&Geometry{Type: "Polygon", Lines: []Line{{{1, 2}}}})
	assert.Error(t, err)

	var g Geometry
	assert.Error(t, json.Unmarshal([]byte(`{"type":"Point","coordinates":[1,2]}`), &g))
}
