package compiler

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Manifest summarizes a compilation: thread layout and stack usage, variable
// offsets and the native functions called.
type Manifest struct {
	ImageSize  int                `json:"image_size" cbor:"1,keyasint"`
	MemorySize int                `json:"memory_size" cbor:"2,keyasint"`
	PoolSize   int                `json:"pool_size" cbor:"3,keyasint"`
	Threads    []ThreadInfo       `json:"threads" cbor:"4,keyasint"`
	Variables  []ManifestVariable `json:"variables" cbor:"5,keyasint"`
	Natives    []ManifestNative   `json:"natives" cbor:"6,keyasint"`
}

// ManifestVariable is one entry of the variable region.
type ManifestVariable struct {
	Name   string `json:"name" cbor:"1,keyasint"`
	Type   string `json:"type" cbor:"2,keyasint"`
	Offset int    `json:"offset" cbor:"3,keyasint"`
}

// ManifestNative records a native function the image calls and the stack
// delta of its call sites.
type ManifestNative struct {
	Function uint16 `json:"function" cbor:"1,keyasint"`
	Name     string `json:"name" cbor:"2,keyasint"`
	Delta    int    `json:"delta" cbor:"3,keyasint"`
}

// Manifest builds the manifest of r.
func (r *Result) Manifest() *Manifest {
	m := &Manifest{
		ImageSize:  len(r.Image),
		MemorySize: int(r.Header.MemorySize),
		PoolSize:   r.PoolSize,
		Threads:    r.Threads,
		Variables:  []ManifestVariable{},
		Natives:    []ManifestNative{},
	}
	for _, v := range r.Variables {
		m.Variables = append(m.Variables, ManifestVariable{Name: v.Name, Type: v.Type.String(), Offset: v.Offset})
	}
	if r.Deltas != nil {
		for _, fn := range r.Deltas.Functions() {
			delta, _ := r.Deltas.Delta(fn)
			m.Natives = append(m.Natives, ManifestNative{Function: uint16(fn), Name: fn.String(), Delta: delta})
		}
	}
	return m
}

// ManifestFormat selects the encoding of a written manifest.
type ManifestFormat string

const (
	ManifestJSON ManifestFormat = "json"
	ManifestCBOR ManifestFormat = "cbor"
)

// WriteManifest encodes m to w. The CBOR encoding uses integer keys for the
// manifest's own fields and is deterministic.
func WriteManifest(w io.Writer, m *Manifest, format ManifestFormat) error {
	switch format {
	case ManifestJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case ManifestCBOR:
		mode, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return err
		}
		return mode.NewEncoder(w).Encode(m)
	default:
		return fmt.Errorf("unknown manifest format %q", format)
	}
}

// ReadManifest decodes a CBOR manifest.
func ReadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}
