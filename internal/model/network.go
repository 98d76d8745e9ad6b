package model

import (
	"encoding/gob"
	"fmt"
	"os"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// RegressionNet is a one-hidden-layer perceptron with a scalar output,
// trained with mean squared error.
type RegressionNet struct {
	// Graph
	g *gorgonia.ExprGraph

	// Input: [batch, inputSize]
	input *gorgonia.Node

	// Dense layers
	fc1W *gorgonia.Node // [inputSize, hiddenSize]
	fc1B *gorgonia.Node // [hiddenSize]
	fc2W *gorgonia.Node // [hiddenSize, 1]

	// Output: [batch, 1]
	output *gorgonia.Node

	// Training nodes, set by PrepareTraining
	target *gorgonia.Node
	loss   *gorgonia.Node

	// VM for execution
	vm gorgonia.VM

	// Configuration
	batchSize  int
	inputSize  int
	hiddenSize int
}

// NewRegressionNet creates a new network for a fixed batch size
func NewRegressionNet(batchSize, inputSize, hiddenSize int) (*RegressionNet, error) {
	if batchSize <= 0 || inputSize <= 0 || hiddenSize < 2 {
		return nil, fmt.Errorf("invalid network shape: batch=%d input=%d hidden=%d", batchSize, inputSize, hiddenSize)
	}

	g := gorgonia.NewGraph()

	input := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(batchSize, inputSize), gorgonia.WithName("input"))

	fc1W := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(inputSize, hiddenSize), gorgonia.WithName("fc1_w"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc1B := gorgonia.NewVector(g, tensor.Float64, gorgonia.WithShape(hiddenSize), gorgonia.WithName("fc1_b"), gorgonia.WithInit(gorgonia.Zeroes()))

	fc1 := gorgonia.Must(gorgonia.Mul(input, fc1W))
	fc1 = gorgonia.Must(gorgonia.BroadcastAdd(fc1, fc1B, nil, []byte{0}))
	fc1 = gorgonia.Must(gorgonia.Rectify(fc1))

	// No output bias: the hidden layer bias carries the intercept
	fc2W := gorgonia.NewMatrix(g, tensor.Float64, gorgonia.WithShape(hiddenSize, 1), gorgonia.WithName("fc2_w"), gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	output := gorgonia.Must(gorgonia.Mul(fc1, fc2W))

	return &RegressionNet{
		g:          g,
		input:      input,
		fc1W:       fc1W,
		fc1B:       fc1B,
		fc2W:       fc2W,
		output:     output,
		vm:         gorgonia.NewTapeMachine(g),
		batchSize:  batchSize,
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
	}, nil
}

// PrepareTraining adds the target, loss and gradient nodes to the graph.
// It must be called once before TrainBatch.
func (n *RegressionNet) PrepareTraining() error {
	if n.loss != nil {
		return nil
	}

	target := gorgonia.NewMatrix(n.g, tensor.Float64, gorgonia.WithShape(n.batchSize, 1), gorgonia.WithName("target"))

	diff, err := gorgonia.Sub(n.output, target)
	if err != nil {
		return fmt.Errorf("failed to build residual: %w", err)
	}
	loss := gorgonia.Must(gorgonia.Mean(gorgonia.Must(gorgonia.Square(diff))))

	if _, err := gorgonia.Grad(loss, n.Learnables()...); err != nil {
		return fmt.Errorf("failed to compute gradients: %w", err)
	}

	// Recreate VM now that the graph includes loss and gradients
	n.vm.Close()
	n.vm = gorgonia.NewTapeMachine(n.g)

	n.target = target
	n.loss = loss
	return nil
}

// TrainBatch runs a forward and backward pass and applies one solver update.
// It returns the batch loss measured before the update.
func (n *RegressionNet) TrainBatch(x, y *tensor.Dense, solver gorgonia.Solver) (float64, error) {
	loss, err := n.run(x, y)
	if err != nil {
		return 0, err
	}
	defer n.vm.Reset()

	learnables := n.Learnables()
	valueGrads := make([]gorgonia.ValueGrad, len(learnables))
	for i, node := range learnables {
		valueGrads[i] = node
	}
	if err := solver.Step(valueGrads); err != nil {
		return 0, fmt.Errorf("failed to update weights: %w", err)
	}

	return loss, nil
}

// Evaluate returns the loss on a batch without updating weights
func (n *RegressionNet) Evaluate(x, y *tensor.Dense) (float64, error) {
	loss, err := n.run(x, y)
	if err != nil {
		return 0, err
	}
	n.vm.Reset()
	return loss, nil
}

func (n *RegressionNet) run(x, y *tensor.Dense) (float64, error) {
	if n.loss == nil {
		return 0, fmt.Errorf("network not prepared for training")
	}

	if err := gorgonia.Let(n.input, x); err != nil {
		return 0, fmt.Errorf("failed to set input: %w", err)
	}
	if err := gorgonia.Let(n.target, y); err != nil {
		return 0, fmt.Errorf("failed to set target: %w", err)
	}

	if err := n.vm.RunAll(); err != nil {
		n.vm.Reset()
		return 0, fmt.Errorf("failed to run forward/backward: %w", err)
	}

	lossValue := n.loss.Value()
	if lossValue == nil {
		n.vm.Reset()
		return 0, fmt.Errorf("loss value is nil")
	}

	switch v := lossValue.Data().(type) {
	case float64:
		return v, nil
	case []float64:
		if len(v) > 0 {
			return v[0], nil
		}
	}
	n.vm.Reset()
	return 0, fmt.Errorf("unexpected loss value type: %T", lossValue.Data())
}

// Learnables returns all learnable parameters
func (n *RegressionNet) Learnables() gorgonia.Nodes {
	return gorgonia.Nodes{
		n.fc1W, n.fc1B,
		n.fc2W,
	}
}

// BatchSize returns the batch size the graph was built for
func (n *RegressionNet) BatchSize() int {
	return n.batchSize
}

// InputSize returns the number of input features
func (n *RegressionNet) InputSize() int {
	return n.inputSize
}

// Save saves the model weights to a file
func (n *RegressionNet) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := gob.NewEncoder(f)

	weights := []struct {
		name string
		node *gorgonia.Node
	}{
		{"fc1W", n.fc1W},
		{"fc1B", n.fc1B},
		{"fc2W", n.fc2W},
	}

	for _, w := range weights {
		val := w.node.Value()
		if val == nil {
			return fmt.Errorf("%s has no value", w.name)
		}

		data, ok := val.Data().([]float64)
		if !ok {
			return fmt.Errorf("%s: unexpected data type %T", w.name, val.Data())
		}
		shape := []int(val.Shape())

		if err := encoder.Encode(shape); err != nil {
			return fmt.Errorf("failed to encode %s shape: %w", w.name, err)
		}
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode %s data: %w", w.name, err)
		}
	}

	return nil
}

// Load loads the model weights from a file
func (n *RegressionNet) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	decoder := gob.NewDecoder(f)

	for _, w := range n.Learnables() {
		var shape []int
		var data []float64

		if err := decoder.Decode(&shape); err != nil {
			return fmt.Errorf("failed to decode shape: %w", err)
		}
		if err := decoder.Decode(&data); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}

		if !tensor.Shape(shape).Eq(w.Shape()) {
			return fmt.Errorf("shape mismatch for %s: file has %v, network has %v", w.Name(), shape, w.Shape())
		}

		t := tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
		if err := gorgonia.Let(w, t); err != nil {
			return fmt.Errorf("failed to set weight: %w", err)
		}
	}

	return nil
}

// Close cleans up resources
func (n *RegressionNet) Close() error {
	n.vm.Close()
	return nil
}

// ModelExists checks if a model file exists
func ModelExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
