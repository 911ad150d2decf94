// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of aki-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package predictor evaluates the pre-trained AKI classifier. The training
// pipeline exports the model as a flat JSON artifact: the standardization
// vectors and a gradient-boosted tree ensemble. Scaling is applied here so
// that callers only ever see raw feature vectors.
package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// Predictor maps a feature vector to a binary AKI verdict.
type Predictor interface {
	Predict(features []float64) (int, error)
}

// Node of a decision tree in the flat array encoding. A negative Feature
// marks a leaf; Value is then the leaf score. Inner nodes route to Left
// when x[Feature] < Threshold, else to Right.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

type artifact struct {
	NumFeatures int       `json:"num_features"`
	BaseScore   float64   `json:"base_score"`
	Mean        []float64 `json:"scaler_mean"`
	Scale       []float64 `json:"scaler_scale"`
	Trees       [][]Node  `json:"trees"`
}

// GBTPredictor is the in-process evaluator for the exported ensemble.
type GBTPredictor struct {
	numFeatures int
	baseScore   float64
	mean        []float64
	scale       []float64
	trees       [][]Node
}

// Load reads the model artifact. Failure here is fatal for the process; the
// caller aborts before entering the ingest loop.
func Load(path string) (*GBTPredictor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact '%s': %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact '%s': %w", path, err)
	}

	if a.NumFeatures <= 0 {
		return nil, fmt.Errorf("model artifact '%s': num_features missing", path)
	}
	if len(a.Mean) != a.NumFeatures || len(a.Scale) != a.NumFeatures {
		return nil, fmt.Errorf("model artifact '%s': scaler length %d/%d, want %d",
			path, len(a.Mean), len(a.Scale), a.NumFeatures)
	}
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("model artifact '%s': no trees", path)
	}
	for i, s := range a.Scale {
		if s == 0 {
			return nil, fmt.Errorf("model artifact '%s': zero scale for feature %d", path, i)
		}
	}

	cclog.Infof("Loaded model artifact '%s': %d trees, %d features",
		path, len(a.Trees), a.NumFeatures)

	return &GBTPredictor{
		numFeatures: a.NumFeatures,
		baseScore:   a.BaseScore,
		mean:        a.Mean,
		scale:       a.Scale,
		trees:       a.Trees,
	}, nil
}

// Predict standardizes the vector, sums the tree scores and thresholds the
// sigmoid at 0.5.
func (p *GBTPredictor) Predict(features []float64) (int, error) {
	if len(features) != p.numFeatures {
		return 0, fmt.Errorf("predict: got %d features, want %d", len(features), p.numFeatures)
	}

	x := make([]float64, len(features))
	for i, v := range features {
		x[i] = (v - p.mean[i]) / p.scale[i]
	}

	score := p.baseScore
	for _, tree := range p.trees {
		score += evalTree(tree, x)
	}

	if 1/(1+math.Exp(-score)) >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

func evalTree(tree []Node, x []float64) float64 {
	i := 0
	for {
		n := tree[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
