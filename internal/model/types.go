package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Brownie44l1/braintumor-api/internal/preprocess"
)

// DefaultClasses are the output labels of the tumor model, in output order.
var DefaultClasses = []string{"glioma_tumor", "meningioma_tumor", "no_tumor", "pituitary_tumor"}

type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

func DefaultMetadata() Metadata {
	m := Metadata{}
	m.applyDefaults()
	return m
}

// LoadMetadata reads a metadata file. Fields missing from the file keep
// their defaults. An empty path returns the defaults.
func LoadMetadata(path string) (Metadata, error) {
	if path == "" {
		return DefaultMetadata(), nil
	}

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata.ImageSize < 0 {
		return Metadata{}, fmt.Errorf("invalid image size %d", metadata.ImageSize)
	}

	metadata.applyDefaults()
	return metadata, nil
}

func (m *Metadata) applyDefaults() {
	if len(m.Classes) == 0 {
		m.Classes = append([]string(nil), DefaultClasses...)
	}
	if m.ImageSize == 0 {
		m.ImageSize = preprocess.DefaultSize
	}
	if len(m.InputShape) == 0 {
		m.InputShape = []int64{1, int64(m.ImageSize), int64(m.ImageSize), 3}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
}

// Prediction is the result returned to API callers.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// InferenceRequest is the body sent to the model server.
type InferenceRequest struct {
	Instances []*preprocess.Tensor `json:"instances"`
}

// InferenceResponse is the body returned by the model server, one
// probability vector per instance.
type InferenceResponse struct {
	Predictions [][]float64 `json:"predictions"`
}
