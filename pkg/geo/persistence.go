package geo

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// cacheData represents the serializable form of a dataset
type cacheData struct {
	Features  []Feature
	RingCount int
}

// SaveToFile writes the dataset to a binary cache file
func (d *Dataset) SaveToFile(filename string) error {
	data := cacheData{
		Features:  d.Features,
		RingCount: d.RingCount(),
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	return nil
}

// LoadFromFile reads a cache written by SaveToFile. The decoded dataset goes
// through the same validation as freshly parsed GeoJSON.
func LoadFromFile(filename string) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data cacheData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}

	d, err := NewDataset(data.Features...)
	if err != nil {
		return nil, err
	}
	if got := d.RingCount(); got != data.RingCount {
		return nil, fmt.Errorf("%w: cache lists %d rings, decoded %d", ErrMalformedBoundaryData, data.RingCount, got)
	}
	return d, nil
}

// Load picks the decoder by extension: ".gob" caches go through LoadFromFile,
// anything else is parsed as GeoJSON.
func Load(filename string) (*Dataset, error) {
	if filepath.Ext(filename) == ".gob" {
		return LoadFromFile(filename)
	}
	return LoadFile(filename)
}
