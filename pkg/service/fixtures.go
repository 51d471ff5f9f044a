package service

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/meme-go/meme/pkg/model"
	"github.com/meme-go/meme/pkg/wire"
)

// FixtureFile is the YAML layout of a fixture file:
//
//	models:
//	  CU_HXR:
//	    rmat:
//	      - {ordinal: 0, element: BEGINNING, device: "", s: 0, r: [[1,0,0,0,0,0], ...]}
//	    twiss:
//	      - {ordinal: 0, element: BEGINNING, device: "", beta_x: 1.1, ...}
type FixtureFile struct {
	Models map[string]FixtureModel `yaml:"models"`
}

// FixtureModel holds the rows of one model.
type FixtureModel struct {
	Rmat  []model.RmatRow  `yaml:"rmat"`
	Twiss []model.TwissRow `yaml:"twiss"`
}

// Fixtures is a loaded fixture file with every table encoded once.
type Fixtures struct {
	tables map[string]map[model.TableKind]*wire.Table
}

// LoadFixtures reads a fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes fixture YAML.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var file FixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return NewFixtures(file)
}

// NewFixtures encodes the tables of every model in file.
func NewFixtures(file FixtureFile) (*Fixtures, error) {
	f := &Fixtures{tables: make(map[string]map[model.TableKind]*wire.Table, len(file.Models))}
	for name, m := range file.Models {
		if err := (model.Key{ModelName: name}).Validate(); err != nil {
			return nil, fmt.Errorf("fixture model %q: %w", name, err)
		}

		rmat, err := model.NewRmatTable(m.Rmat)
		if err != nil {
			return nil, fmt.Errorf("fixture model %s rmat: %w", name, err)
		}
		twiss, err := model.NewTwissTable(m.Twiss)
		if err != nil {
			return nil, fmt.Errorf("fixture model %s twiss: %w", name, err)
		}

		tables := make(map[model.TableKind]*wire.Table, 2)
		if tables[model.TableRmat], err = rmat.Encode(); err != nil {
			return nil, fmt.Errorf("fixture model %s rmat: %w", name, err)
		}
		if tables[model.TableTwiss], err = twiss.Encode(); err != nil {
			return nil, fmt.Errorf("fixture model %s twiss: %w", name, err)
		}
		f.tables[name] = tables
	}
	return f, nil
}

// Models returns the model names in sorted order.
func (f *Fixtures) Models() []string {
	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns a copy of the table for key and kind. The source and mode of
// the key are ignored.
func (f *Fixtures) Table(key model.Key, kind model.TableKind) (*wire.Table, bool) {
	tables, ok := f.tables[key.ModelName]
	if !ok {
		return nil, false
	}
	t, ok := tables[kind]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}
