package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/braintumor-api/internal/preprocess"
)

// Predictor returns class probabilities for a single preprocessed image.
type Predictor interface {
	Predict(ctx context.Context, img *preprocess.Tensor) ([]float64, error)
}

// Classify picks the most probable class. Ties go to the lowest index.
func Classify(probabilities []float64, classes []string) (*Prediction, error) {
	if len(probabilities) == 0 {
		return nil, errors.New("empty prediction vector")
	}

	maxIdx := 0
	maxVal := probabilities[0]
	for i, val := range probabilities[1:] {
		if val > maxVal {
			maxVal = val
			maxIdx = i + 1
		}
	}

	if maxIdx >= len(classes) {
		return nil, fmt.Errorf("prediction index %d out of range for %d classes", maxIdx, len(classes))
	}

	return &Prediction{
		Class:      classes[maxIdx],
		Confidence: maxVal,
	}, nil
}

// Classifier runs the full pipeline: decode, resize, predict, argmax.
type Classifier struct {
	predictor Predictor
	metadata  Metadata
}

func NewClassifier(predictor Predictor, metadata Metadata) *Classifier {
	return &Classifier{
		predictor: predictor,
		metadata:  metadata,
	}
}

func (c *Classifier) Classify(ctx context.Context, data []byte) (*Prediction, error) {
	img, err := preprocess.Load(data, c.metadata.ImageSize)
	if err != nil {
		return nil, err
	}

	probabilities, err := c.predictor.Predict(ctx, img)
	if err != nil {
		return nil, err
	}

	return Classify(probabilities, c.metadata.Classes)
}
