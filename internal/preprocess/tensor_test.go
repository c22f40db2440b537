package preprocess

import (
	"encoding/json"
	"testing"
)

func TestTensor_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		tensor   *Tensor
		expected string
	}{
		{
			name:     "rgb",
			tensor:   &Tensor{Height: 2, Width: 2, Channels: 3, Data: []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 255}},
			expected: `[[[0,1,2],[3,4,5]],[[6,7,8],[9,10,255]]]`,
		},
		{
			name:     "gray",
			tensor:   &Tensor{Height: 2, Width: 3, Channels: 1, Data: []uint8{1, 2, 3, 4, 5, 6}},
			expected: `[[1,2,3],[4,5,6]]`,
		},
		{
			name:     "empty",
			tensor:   NewTensor(0, 0, 3),
			expected: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.tensor)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, data)
			}
		})
	}
}

func TestTensor_MarshalJSON_Batch(t *testing.T) {
	tensor := NewTensor(150, 150, 3)
	body, err := json.Marshal(map[string][]*Tensor{"instances": {tensor}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		Instances [][][][]int `json:"instances"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Body is not a nested array: %v", err)
	}

	if len(decoded.Instances) != 1 ||
		len(decoded.Instances[0]) != 150 ||
		len(decoded.Instances[0][0]) != 150 ||
		len(decoded.Instances[0][0][0]) != 3 {
		t.Errorf("Unexpected instances shape")
	}
}

func TestTensor_Float32AndShape(t *testing.T) {
	tensor := &Tensor{Height: 1, Width: 2, Channels: 1, Data: []uint8{0, 255}}

	f := tensor.Float32()
	if len(f) != 2 || f[0] != 0 || f[1] != 255 {
		t.Errorf("Unexpected float values %v", f)
	}

	shape := tensor.Shape()
	if len(shape) != 3 || shape[0] != 1 || shape[1] != 2 || shape[2] != 1 {
		t.Errorf("Unexpected shape %v", shape)
	}
}
