package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

// Profile tunes how board sessions order and persist tasks.
type Profile struct {
	WeightOrder    string        `yaml:"weightOrder"`
	PersistTimeout time.Duration `yaml:"persistTimeout"`
	Messages       struct {
		Success string `yaml:"success"`
		Failure string `yaml:"failure"`
	} `yaml:"messages"`
}

// DefaultProfile shows higher weights first.
func DefaultProfile() Profile {
	p := Profile{WeightOrder: string(domain.WeightDescending), PersistTimeout: 30 * time.Second}
	p.Messages.Success = "Task moved"
	p.Messages.Failure = "Failed to move task"
	return p
}

// LoadProfile reads a YAML profile from path. Fields missing from the file
// keep their defaults; an empty path returns DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse board profile %s: %w", path, err)
	}
	if _, err := p.Order(); err != nil {
		return Profile{}, err
	}
	if p.PersistTimeout <= 0 {
		return Profile{}, fmt.Errorf("invalid persistTimeout %v", p.PersistTimeout)
	}
	return p, nil
}

// Order returns the parsed weight order.
func (p Profile) Order() (domain.WeightOrder, error) {
	return domain.ParseWeightOrder(p.WeightOrder)
}
