package wikidata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, id string) *Entity {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", id+".json"))
	require.NoError(t, err)
	defer f.Close()

	doc, err := DecodeDocument(f)
	require.NoError(t, err)
	e, err := doc.Entity(id)
	require.NoError(t, err)
	return e
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"Q1", true},
		{"Q6581097", true},
		{"q1", false},
		{"P31", false},
		{"Q", false},
		{" Q1", false},
		{"Q1 ", false},
		{"Q12a", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdentifier(tt.id))
		})
	}
}

func TestDecodeDocumentErrors(t *testing.T) {
	_, err := DecodeDocument(strings.NewReader(`{"entities": `))
	assert.Error(t, err)

	_, err = DecodeDocument(strings.NewReader(`{"entities": {}}`))
	assert.Error(t, err)
}

func TestDocumentEntityRedirect(t *testing.T) {
	e := loadFixture(t, "Q4")
	assert.Equal(t, "Q40", e.ID)
}

func TestDocumentEntityAmbiguous(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(`{"entities": {"Q1": {"id": "Q1"}, "Q2": {"id": "Q2"}}}`))
	require.NoError(t, err)

	_, err = doc.Entity("Q3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[Q1 Q2]")
}

func TestEntityValuesSkipsDeprecated(t *testing.T) {
	e := loadFixture(t, "Q3")

	values := e.Values(PropInstanceOf)
	require.Len(t, values, 1)
	id, ok := values[0].EntityID()
	require.True(t, ok)
	assert.Equal(t, "Q178561", id)
	assert.True(t, e.HasClaims(PropInstanceOf))
	assert.False(t, e.HasClaims(PropSubclassOf))
}

func TestDataValueAccessors(t *testing.T) {
	v := &DataValue{Type: "wikibase-entityid", Value: []byte(`{"numeric-id": 42}`)}
	id, ok := v.EntityID()
	assert.True(t, ok)
	assert.Equal(t, "Q42", id)

	_, ok = v.Time()
	assert.False(t, ok)
	_, ok = v.StringValue()
	assert.False(t, ok)
	_, ok = v.MonolingualText()
	assert.False(t, ok)

	var nilValue *DataValue
	_, ok = nilValue.EntityID()
	assert.False(t, ok)
}
