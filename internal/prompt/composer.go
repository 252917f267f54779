// Package prompt assembles the single text prompt sent to the language model.
package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"fin-advisor/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yaml
var defaultPersona []byte

const (
	placeholderQuery      = "{query}"
	placeholderExperience = "{experience_level}"
	placeholderInvestment = "{investment_type}"
	unspecified           = "unspecified"
)

// Persona is the fixed instruction set prepended to every prompt.
type Persona struct {
	Persona        string `yaml:"persona"`
	ContextLabel   string `yaml:"context_label"`
	ContextNote    string `yaml:"context_note"`
	WithProfile    string `yaml:"with_profile"`
	WithoutProfile string `yaml:"without_profile"`
}

func (p *Persona) validate() error {
	switch {
	case strings.TrimSpace(p.Persona) == "":
		return errors.New("persona: empty persona instructions")
	case strings.TrimSpace(p.ContextLabel) == "":
		return errors.New("persona: empty context_label")
	case !strings.Contains(p.WithProfile, placeholderQuery):
		return fmt.Errorf("persona: with_profile must contain %s", placeholderQuery)
	case !strings.Contains(p.WithoutProfile, placeholderQuery):
		return fmt.Errorf("persona: without_profile must contain %s", placeholderQuery)
	}
	return nil
}

// ParsePersona decodes a YAML persona definition.
func ParsePersona(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPersona reads path, or returns the built-in persona when path is empty.
func LoadPersona(path string) (*Persona, error) {
	if path == "" {
		return ParsePersona(defaultPersona)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	return ParsePersona(data)
}

// DefaultPersona returns the built-in persona.
func DefaultPersona() *Persona {
	p, err := ParsePersona(defaultPersona)
	if err != nil {
		panic(err)
	}
	return p
}

type Composer struct {
	persona *Persona
}

func NewComposer(persona *Persona) *Composer {
	return &Composer{persona: persona}
}

// Compose renders persona instructions, an optional Context block and the
// profile-dependent user block. A nil profile selects the clarifying-question branch.
func (c *Composer) Compose(query string, profile *models.Profile, context []string) string {
	var b strings.Builder

	b.WriteString(c.persona.Persona)
	b.WriteString("\n\n")

	if len(context) > 0 {
		b.WriteString(c.persona.ContextLabel)
		b.WriteString(":\n")
		if c.persona.ContextNote != "" {
			b.WriteString(c.persona.ContextNote)
			b.WriteString("\n")
		}
		for _, doc := range context {
			b.WriteString("- ")
			b.WriteString(strings.TrimSpace(doc))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if profile != nil {
		b.WriteString(strings.NewReplacer(
			placeholderExperience, orUnspecified(string(profile.ExperienceLevel)),
			placeholderInvestment, orUnspecified(string(profile.InvestmentType)),
			placeholderQuery, query,
		).Replace(c.persona.WithProfile))
	} else {
		b.WriteString(strings.ReplaceAll(c.persona.WithoutProfile, placeholderQuery, query))
	}

	return b.String()
}

func orUnspecified(s string) string {
	if s == "" {
		return unspecified
	}
	return s
}
