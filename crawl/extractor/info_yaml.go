package extractor

import (
	"io/ioutil"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Sidecar is the processing metadata document the offline fitter
// leaves next to each granule container.
type Sidecar struct {
	Mission            string            `yaml:"mission"`
	TileID             string            `yaml:"tile_id"`
	ProcessingBaseline string            `yaml:"processing_baseline"`
	Properties         map[string]string `yaml:"properties"`
}

// SidecarPath locates the YAML sidecar of a granule file. Both
// <granule>.yaml and <granule minus extension>.yaml are accepted.
func SidecarPath(granulePath string) string {
	candidates := []string{granulePath + ".yaml"}
	if idx := strings.LastIndex(granulePath, "."); idx > strings.LastIndex(granulePath, "/") {
		candidates = append(candidates, granulePath[:idx]+".yaml")
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ExtractSidecar parses the sidecar of a granule file. A missing
// sidecar is not an error, the records are simply left bare.
func ExtractSidecar(granulePath string) (*Sidecar, error) {
	sidecarPath := SidecarPath(granulePath)
	if len(sidecarPath) == 0 {
		return nil, nil
	}

	rawData, err := ioutil.ReadFile(sidecarPath)
	if err != nil {
		return nil, err
	}

	sidecar := &Sidecar{}
	if err := yaml.Unmarshal(rawData, sidecar); err != nil {
		return nil, err
	}
	return sidecar, nil
}

func MergeSidecar(records []*GranuleRecord, sidecar *Sidecar) {
	for _, rec := range records {
		rec.Mission = sidecar.Mission
		rec.TileID = sidecar.TileID
		rec.ProcessingBaseline = sidecar.ProcessingBaseline
	}
}
