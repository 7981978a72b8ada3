package app

import (
	"fmt"

	"modpack/internal/shared/util"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML description of an assembly written next to the
// archive on request.
type Manifest struct {
	Entry           string           `yaml:"entry"`
	Archive         string           `yaml:"archive"`
	Digest          string           `yaml:"digest"`
	Size            int64            `yaml:"size"`
	DateTime        string           `yaml:"date_time"`
	HistoryID       string           `yaml:"history_id,omitempty"`
	Modules         []ManifestModule `yaml:"modules"`
	AttributeRefs   []string         `yaml:"attribute_refs,omitempty"`
	DroppedOptional []string         `yaml:"dropped_optional,omitempty"`
	Ignored         []string         `yaml:"ignored,omitempty"`
}

type ManifestModule struct {
	Name       string `yaml:"name"`
	Path       string `yaml:"path"`
	Package    bool   `yaml:"package,omitempty"`
	Redirected bool   `yaml:"redirected,omitempty"`
}

func NewManifest(asm *Assembly) Manifest {
	m := Manifest{
		Entry:           asm.Entry,
		Archive:         asm.Output,
		Digest:          asm.Summary.Digest,
		Size:            asm.Summary.Size,
		DateTime:        asm.Summary.DateTime.String(),
		HistoryID:       asm.ID,
		AttributeRefs:   asm.AttributeRefs,
		DroppedOptional: asm.DroppedOptional,
		Ignored:         asm.Ignored,
	}
	for _, mod := range asm.Modules {
		m.Modules = append(m.Modules, ManifestModule{
			Name:       mod.Name.String(),
			Path:       mod.ArchivePath,
			Package:    mod.IsPackage,
			Redirected: mod.Redirected,
		})
	}
	return m
}

func (m Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// WriteManifest writes the manifest of asm to path.
func WriteManifest(path string, asm *Assembly) error {
	data, err := NewManifest(asm).Marshal()
	if err != nil {
		return err
	}
	return util.WriteFileWithDirs(path, data, 0o644)
}
