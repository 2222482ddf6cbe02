package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neomorfeo/processiq/internal/app"
	"github.com/neomorfeo/processiq/internal/domain"
)

type seedFile struct {
	Phases []seedPhase `yaml:"phases"`
}

type seedPhase struct {
	Type     string  `yaml:"type"`
	Name     string  `yaml:"name"`
	Position int     `yaml:"position"`
	Terminal bool    `yaml:"terminal"`
	SLA      seedSLA `yaml:"sla"`
}

type seedSLA struct {
	Kind    string `yaml:"kind"`
	Days    int    `yaml:"days"`
	Minutes int    `yaml:"minutes"`
}

// LoadCatalogSeed reads the initial phase catalog from a YAML file.
// Unknown keys are rejected so a typo cannot silently drop an SLA.
func LoadCatalogSeed(path string) ([]app.PhaseInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog seed: %w", err)
	}
	return ParseCatalogSeed(data)
}

// ParseCatalogSeed decodes a catalog seed document.
func ParseCatalogSeed(data []byte) ([]app.PhaseInput, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file seedFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing catalog seed: %w", err)
	}

	inputs := make([]app.PhaseInput, 0, len(file.Phases))
	for i, p := range file.Phases {
		typ := domain.ProcessType(p.Type)
		if !typ.Valid() {
			return nil, fmt.Errorf("catalog seed phase %d: unknown process type %q", i+1, p.Type)
		}
		inputs = append(inputs, app.PhaseInput{
			Type:     typ,
			Name:     p.Name,
			Position: p.Position,
			Terminal: p.Terminal,
			SLA: domain.SLAPolicy{
				Kind:    domain.SLAKind(p.SLA.Kind),
				Days:    p.SLA.Days,
				Minutes: p.SLA.Minutes,
			},
		})
	}
	return inputs, nil
}
