package config

// RegionsConfig mirrors regions.yaml.
type RegionsConfig struct {
	Regions map[string]Region `yaml:"regions"`
}

// Region is a geographic partition with its own bounding box and timezone.
// States lists the postal states the region spans; single-state regions get
// the region/state consistency check in DQ.
type Region struct {
	Timezone string   `yaml:"timezone"`
	BBox     BBox     `yaml:"bbox"`
	States   []string `yaml:"states"`
}

// BBox is a lat/lon bounding box.
type BBox struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// Contains reports whether the point falls inside the box.
func (b BBox) Contains(lat, lon float64) bool {
	return b.South <= lat && lat <= b.North && b.West <= lon && lon <= b.East
}

// SingleState returns the region's postal state when it spans exactly one.
func (r Region) SingleState() (string, bool) {
	if len(r.States) == 1 {
		return r.States[0], true
	}
	return "", false
}
