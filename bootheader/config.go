package bootheader

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Section is the configuration file section holding the header values.
const Section = "BOOTHEADER_CFG"

// LoadINI reads the BOOTHEADER_CFG section of a Bouffalo configuration file.
//
// Key names are case insensitive and returned in lower case.
func LoadINI(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, data)
	if err != nil {
		return nil, fmt.Errorf("bootheader: %w", err)
	}
	sec, err := f.GetSection(Section)
	if err != nil {
		return nil, fmt.Errorf("bootheader: %w", err)
	}
	return sec.KeysHash(), nil
}

// ToJSON returns the indented JSON view of h.
func ToJSON(h *BootHeader) ([]byte, error) {
	return json.MarshalIndent(h, "", "  ")
}

// ToYAML returns the YAML view of h.
func ToYAML(h *BootHeader) ([]byte, error) {
	return yaml.Marshal(h)
}
