package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/braintumor-api/internal/preprocess"
)

// Server runs the tumor model in-process with ONNX Runtime. It is the
// local alternative to RemoteClient and satisfies the same Predictor
// interface.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewServer loads modelPath. libPath points at the onnxruntime shared
// library and may be empty to use the platform default.
func NewServer(modelPath, libPath string, metadata Metadata) (*Server, error) {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputShape := ort.NewShape(metadata.InputShape...)
	outputShape := ort.NewShape(metadata.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict feeds the raw HWC pixel values as a batch of one.
func (s *Server) Predict(ctx context.Context, img *preprocess.Tensor) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputData := img.Float32()
	if want := shapeSize(s.Metadata.InputShape); int64(len(inputData)) != want {
		return nil, fmt.Errorf("model expects %d input values, got %d (%dx%dx%d)",
			want, len(inputData), img.Height, img.Width, img.Channels)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), inputData)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	outputData := s.outputTensor.GetData()
	probabilities := make([]float64, len(outputData))
	for i, val := range outputData {
		probabilities[i] = float64(val)
	}

	return probabilities, nil
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}

func shapeSize(shape []int64) int64 {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	return size
}
