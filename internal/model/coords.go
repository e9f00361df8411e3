package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// Coords is a latitude/longitude pair. It is encoded as [lat, lng].
type Coords struct {
	Lat float64
	Lng float64
}

func (c Coords) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coords) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lng})
}

func (c *Coords) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode coords: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decode coords: expected 2 values, got %d", len(pair))
	}
	c.Lat = pair[0]
	c.Lng = pair[1]
	return nil
}
