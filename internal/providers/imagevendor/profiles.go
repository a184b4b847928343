package imagevendor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mueck/internal/domain"
)

// Lora is an auxiliary network applied on top of the checkpoint.
type Lora struct {
	Model  string  `yaml:"model"`
	Weight float64 `yaml:"weight"`
}

// Profile holds the request parameters a vendor is called with.
type Profile struct {
	Model     string  `yaml:"model"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Steps     int     `yaml:"steps"`
	CFGScale  float64 `yaml:"cfg_scale"`
	ClipSkip  int     `yaml:"clip_skip"`
	Guidance  float64 `yaml:"guidance"`
	Sampler   string  `yaml:"sampler"`
	Scheduler string  `yaml:"scheduler"`
	VAE       string  `yaml:"vae"`
	Count     int     `yaml:"count"`
	Loras     []Lora  `yaml:"loras"`
}

// Profiles is keyed by vendor kind.
type Profiles map[Kind]Profile

// DefaultProfiles returns the built-in request parameters.
func DefaultProfiles() Profiles {
	return Profiles{
		domain.VendorTensorArt: {
			Model:    "763947005736342551",
			Width:    1024,
			Height:   1536,
			Steps:    20,
			CFGScale: 1.5,
			ClipSkip: 1,
			Guidance: 3.5,
			Sampler:  "Euler a",
			VAE:      "Automatic",
			Count:    1,
		},
		domain.VendorCivitAI: {
			Model:     "urn:air:sdxl:checkpoint:civitai:443821@2071650",
			Width:     832,
			Height:    1024,
			Steps:     20,
			CFGScale:  3.5,
			ClipSkip:  2,
			Scheduler: "EulerA",
			Count:     1,
		},
		domain.VendorLocal: {
			Model:    "stabilityai/stable-diffusion-3.5-medium",
			Width:    1024,
			Height:   1024,
			Steps:    40,
			CFGScale: 4.5,
			Count:    1,
		},
	}
}

// LoadProfiles reads a YAML document of the form `<vendor>: {model: ..., width: ...}` and
// overlays it onto the defaults. An empty path returns the defaults.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vendor profiles: %w", err)
	}
	var overrides map[string]Profile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse vendor profiles: %w", err)
	}
	for name, override := range overrides {
		kind := Kind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("vendor profiles: unknown vendor %q", name)
		}
		profiles[kind] = profiles[kind].merge(override)
	}
	return profiles, nil
}

// For returns the profile for kind, falling back to the defaults.
func (p Profiles) For(kind Kind) Profile {
	if profile, ok := p[kind]; ok {
		return profile
	}
	return DefaultProfiles()[kind]
}

func (p Profile) merge(o Profile) Profile {
	if o.Model != "" {
		p.Model = o.Model
	}
	if o.Width > 0 {
		p.Width = o.Width
	}
	if o.Height > 0 {
		p.Height = o.Height
	}
	if o.Steps > 0 {
		p.Steps = o.Steps
	}
	if o.CFGScale > 0 {
		p.CFGScale = o.CFGScale
	}
	if o.ClipSkip > 0 {
		p.ClipSkip = o.ClipSkip
	}
	if o.Guidance > 0 {
		p.Guidance = o.Guidance
	}
	if o.Sampler != "" {
		p.Sampler = o.Sampler
	}
	if o.Scheduler != "" {
		p.Scheduler = o.Scheduler
	}
	if o.VAE != "" {
		p.VAE = o.VAE
	}
	if o.Count > 0 {
		p.Count = o.Count
	}
	if o.Loras != nil {
		p.Loras = o.Loras
	}
	return p
}
