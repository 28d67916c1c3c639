// Package config loads cell parameters from YAML documents. Property
// functions are declared as structured specs (constant, polynomial, or
// interpolation table) with an optional linear temperature correction, so a
// full cell definition can live in a plain data file. A set of ready-made
// cell templates ships embedded in the binary.
package config

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thevenin-xyz/go-thevenin/cell"
)

//go:embed templates/*.yaml
var templates embed.FS

// File is the YAML document shape for one cell definition.
type File struct {
	NumRCPairs   int     `yaml:"num_RC_pairs"`
	SOC0         float64 `yaml:"soc0"`
	Capacity     float64 `yaml:"capacity_Ah"`
	CoulombicEff float64 `yaml:"coulombic_efficiency"`
	Gamma        float64 `yaml:"gamma"`
	Mass         float64 `yaml:"mass_kg"`
	Isothermal   bool    `yaml:"isothermal"`
	Cp           float64 `yaml:"Cp"`
	TInf         float64 `yaml:"T_inf"`
	HTherm       float64 `yaml:"h_therm"`
	ATherm       float64 `yaml:"A_therm"`

	OCV   FuncSpec   `yaml:"ocv"`
	MHyst FuncSpec   `yaml:"M_hyst"`
	R0    FuncSpec   `yaml:"R0"`
	RJ    []FuncSpec `yaml:"RJ"`
	CJ    []FuncSpec `yaml:"CJ"`
}

// Params converts the document into validated cell parameters.
func (f *File) Params() (cell.Params, error) {
	p := cell.Params{
		NumRCPairs:   f.NumRCPairs,
		SOC0:         f.SOC0,
		Capacity:     f.Capacity,
		CoulombicEff: f.CoulombicEff,
		Gamma:        f.Gamma,
		Mass:         f.Mass,
		Isothermal:   f.Isothermal,
		Cp:           f.Cp,
		TInf:         f.TInf,
		HTherm:       f.HTherm,
		ATherm:       f.ATherm,
	}

	var err error
	if p.OCV, err = f.OCV.socFunc("ocv"); err != nil {
		return cell.Params{}, err
	}
	if p.MHyst, err = f.MHyst.socFunc("M_hyst"); err != nil {
		return cell.Params{}, err
	}
	if p.R0, err = f.R0.physicsFunc("R0"); err != nil {
		return cell.Params{}, err
	}
	for j, spec := range f.RJ {
		fn, err := spec.physicsFunc(fmt.Sprintf("RJ[%d]", j))
		if err != nil {
			return cell.Params{}, err
		}
		p.RJ = append(p.RJ, fn)
	}
	for j, spec := range f.CJ {
		fn, err := spec.physicsFunc(fmt.Sprintf("CJ[%d]", j))
		if err != nil {
			return cell.Params{}, err
		}
		p.CJ = append(p.CJ, fn)
	}

	if err := p.Validate(); err != nil {
		return cell.Params{}, fmt.Errorf("cell definition invalid: %w", err)
	}
	return p, nil
}

// Parse decodes a YAML cell definition.
func Parse(data []byte) (cell.Params, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return cell.Params{}, fmt.Errorf("parse cell definition: %w", err)
	}
	return f.Params()
}

// Load reads and decodes a YAML cell definition from disk.
func Load(path string) (cell.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cell.Params{}, fmt.Errorf("read cell definition: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return cell.Params{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ListTemplates returns the names of the embedded cell templates, sorted.
func ListTemplates() []string {
	entries, err := fs.ReadDir(templates, "templates")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// LoadTemplate decodes one embedded template by name.
func LoadTemplate(name string) (cell.Params, error) {
	data, err := fs.ReadFile(templates, "templates/"+name+".yaml")
	if err != nil {
		return cell.Params{}, fmt.Errorf("unknown template %q; available: %v",
			name, ListTemplates())
	}
	p, err := Parse(data)
	if err != nil {
		return cell.Params{}, fmt.Errorf("template %q: %w", name, err)
	}
	return p, nil
}

// WriteTemplates copies the embedded templates into dir so users can edit
// them as starting points. Existing files are not overwritten.
func WriteTemplates(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	entries, err := fs.ReadDir(templates, "templates")
	if err != nil {
		return err
	}
	for _, e := range entries {
		dst := filepath.Join(dir, e.Name())
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("refusing to overwrite %s", dst)
		}
		data, err := fs.ReadFile(templates, "templates/"+e.Name())
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
