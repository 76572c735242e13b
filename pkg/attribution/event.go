package attribution

import (
	"crypto/md5"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/NERVsystems/osmgender/pkg/core"
)

// EventMap maps hashed street names to a gender. It is built from a CSV of
// (French name, Dutch name, gender) rows.
type EventMap struct {
	genders map[[md5.Size]byte]string
}

// NewEventMap returns an empty map.
func NewEventMap() *EventMap {
	return &EventMap{genders: make(map[[md5.Size]byte]string)}
}

// Add maps name to gender. Mapping a name to a second, different gender is
// an AMBIGUOUS_MAPPING error and leaves the map unchanged.
func (m *EventMap) Add(name, gender string) error {
	key := md5.Sum([]byte(name))
	if existing, ok := m.genders[key]; ok && existing != gender {
		return core.Errorf(core.ErrAmbiguousMapping, "%q is mapped to both %q and %q", name, existing, gender)
	}
	m.genders[key] = gender
	return nil
}

// Lookup returns the gender mapped to name.
func (m *EventMap) Lookup(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	g, ok := m.genders[md5.Sum([]byte(name))]
	return g, ok
}

// Len returns the number of distinct hashed names.
func (m *EventMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.genders)
}

// LoadEventCSV builds a map from CSV rows. Extra columns are ignored and
// empty names are skipped.
func LoadEventCSV(r io.Reader) (*EventMap, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	m := NewEventMap()
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return m, nil
		}
		if err != nil {
			return nil, core.NewError(core.ErrParseError, "invalid event CSV").Wrap(err)
		}
		if len(row) < 3 {
			return nil, core.Errorf(core.ErrParseError, "event CSV line %d has %d fields, expected 3", line, len(row))
		}

		nameFR, nameNL, gender := row[0], row[1], row[2]
		for _, name := range []string{nameFR, nameNL} {
			if name == "" {
				continue
			}
			if err := m.Add(name, gender); err != nil {
				return nil, fmt.Errorf("event CSV line %d: %w", line, err)
			}
		}
	}
}

// LoadEventFile builds a map from the CSV file at path.
func LoadEventFile(path string) (*EventMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.NewError(core.ErrMissingDocument, "event CSV doesn't exist or is not readable").
			WithPath(path).
			WithGuidance("Check event.csv in config.yaml").
			Wrap(err)
	}
	defer f.Close()

	m, err := LoadEventCSV(f)
	if err != nil {
		var coded *core.Error
		if errors.As(err, &coded) && coded.Path == "" {
			coded.Path = path
		}
		return nil, err
	}
	return m, nil
}
