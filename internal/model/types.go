package model

import (
	"fmt"
	"strings"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	SchemaVersion = 1
	CodecVersion  = 1
)

func CurrentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: SchemaVersion, CodecVersion: CodecVersion}
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Color is a straight (non-premultiplied) RGBA tuple.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Channel returns channel i in R, G, B, A order.
func (c Color) Channel(i int) uint8 {
	switch i {
	case 0:
		return c.R
	case 1:
		return c.G
	case 2:
		return c.B
	default:
		return c.A
	}
}

// WithChannel returns a copy of c with channel i replaced by v.
func (c Color) WithChannel(i int, v uint8) Color {
	switch i {
	case 0:
		c.R = v
	case 1:
		c.G = v
	case 2:
		c.B = v
	default:
		c.A = v
	}
	return c
}

var (
	Black = Color{R: 0, G: 0, B: 0, A: 255}
	White = Color{R: 255, G: 255, B: 255, A: 255}
)

type Polygon struct {
	Points []Point `json:"points"`
	Color  Color   `json:"color"`
}

func (p Polygon) String() string {
	parts := make([]string, 0, len(p.Points))
	for _, pt := range p.Points {
		parts = append(parts, fmt.Sprintf("(%d, %d)", pt.X, pt.Y))
	}
	return fmt.Sprintf("[%s], (%d, %d, %d, %d)", strings.Join(parts, ", "), p.Color.R, p.Color.G, p.Color.B, p.Color.A)
}

// Size is an immutable canvas size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Genome is the DNA of one candidate: the canvas it paints on and the
// polygons in back-to-front paint order.
type Genome struct {
	VersionedRecord
	Canvas     Size      `json:"canvas"`
	Polygons   []Polygon `json:"polygons"`
	Generation int       `json:"generation"`
}

// Checkpoint is a persisted best genome at a given loop generation.
type Checkpoint struct {
	VersionedRecord
	RunID      string  `json:"run_id"`
	Generation int     `json:"generation"`
	Fitness    float64 `json:"fitness"`
	Accepted   int     `json:"accepted"`
	Genome     Genome  `json:"genome"`
}

type RunRecord struct {
	VersionedRecord
	ID               string  `json:"id"`
	TargetPath       string  `json:"target_path"`
	CreatedAtUTC     string  `json:"created_at_utc"`
	Seed             int64   `json:"seed"`
	Polygons         int     `json:"polygons"`
	MinPoints        int     `json:"min_points"`
	MaxPoints        int     `json:"max_points"`
	Offset           int     `json:"offset"`
	FixedColor       bool    `json:"fixed_color"`
	Mutation         string  `json:"mutation"`
	SnapshotInterval int     `json:"snapshot_interval"`
	InitialFitness   float64 `json:"initial_fitness"`
	BestFitness      float64 `json:"best_fitness"`
	Generations      int     `json:"generations"`
	Snapshots        int     `json:"snapshots"`
	ContinuedFrom    string  `json:"continued_from,omitempty"`
}
