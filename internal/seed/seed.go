// Package seed loads helper profiles for replacing the catalog.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/helpmate/internal/models"
)

//go:embed helpers.yaml
var builtin []byte

type file struct {
	Helpers []profile `yaml:"helpers"`
}

// profile mirrors models.HelperProfile with availability defaulting to true when omitted.
type profile struct {
	Name           string   `yaml:"name"`
	Age            int      `yaml:"age"`
	Nationality    string   `yaml:"nationality"`
	Experience     int      `yaml:"experience"`
	Skills         []string `yaml:"skills"`
	Availability   *bool    `yaml:"availability"`
	ExpectedSalary *int     `yaml:"expected_salary"`
}

// Builtin returns the bundled catalog of 30 profiles.
func Builtin() ([]*models.HelperProfile, error) {
	return Parse(builtin)
}

// LoadFile reads profiles from a YAML file with a top-level "helpers" list.
func LoadFile(path string) ([]*models.HelperProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates profiles. Name, age and nationality are required.
func Parse(data []byte) ([]*models.HelperProfile, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	if len(f.Helpers) == 0 {
		return nil, fmt.Errorf("seed data contains no helpers")
	}
	out := make([]*models.HelperProfile, 0, len(f.Helpers))
	for i, p := range f.Helpers {
		name := strings.TrimSpace(p.Name)
		nationality := strings.TrimSpace(p.Nationality)
		if name == "" || nationality == "" || p.Age <= 0 {
			return nil, fmt.Errorf("helper %d: name, age and nationality are required", i+1)
		}
		if p.Experience < 0 {
			return nil, fmt.Errorf("helper %d (%s): experience cannot be negative", i+1, name)
		}
		available := true
		if p.Availability != nil {
			available = *p.Availability
		}
		skills := make([]string, 0, len(p.Skills))
		for _, s := range p.Skills {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
		out = append(out, &models.HelperProfile{
			Name:           name,
			Age:            p.Age,
			Nationality:    nationality,
			Experience:     p.Experience,
			Skills:         skills,
			Availability:   available,
			ExpectedSalary: p.ExpectedSalary,
		})
	}
	return out, nil
}
