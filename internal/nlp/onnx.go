package nlp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"

	"github.com/straja-ai/adaware/internal/signals"
)

// Bundle file names inside the model directory.
const (
	modelFile  = "sentiment.onnx"
	labelsFile = "label_map.json"
	configFile = "sentiment.yaml"
	vocabFile  = "vocab.txt"
)

// ModelConfig is read from sentiment.yaml in the bundle.
type ModelConfig struct {
	SeqLen int `yaml:"seq_len"`
	// Below this winning probability the result is reported as neutral.
	NeutralBelow float64 `yaml:"neutral_below"`
}

// ONNXSentiment is a sequence classifier over ONNX Runtime. The session
// has fixed input buffers, so Predict is serialized.
type ONNXSentiment struct {
	session   *ort.AdvancedSession
	tokenizer *WordPiece
	labels    []string
	cfg       ModelConfig

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// LoadONNXSentiment opens a bundle directory holding sentiment.onnx,
// label_map.json, sentiment.yaml and vocab.txt.
func LoadONNXSentiment(dir string) (*ONNXSentiment, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("nlp bundle dir is empty")
	}

	libPath := sharedLibraryPath(dir)
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(dir, modelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}
	labels, err := loadLabels(filepath.Join(dir, labelsFile))
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	cfg, err := loadModelConfig(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("load model config: %w", err)
	}
	tok, err := LoadWordPiece(filepath.Join(dir, vocabFile))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	inShape := ort.NewShape(1, int64(cfg.SeqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	mask, err := ort.NewEmptyTensor[int64](inShape)
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		inputIDs.Destroy()
		mask.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, mask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		mask.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXSentiment{
		session:       session,
		tokenizer:     tok,
		labels:        labels,
		cfg:           cfg,
		inputIDs:      inputIDs,
		attentionMask: mask,
		output:        output,
	}, nil
}

// Predict maps the winning class onto a signed score: negative classes give
// a negative score.
func (m *ONNXSentiment) Predict(text string) (signals.Sentiment, error) {
	if m == nil || m.session == nil {
		return signals.Sentiment{}, errors.New("sentiment model not initialized")
	}
	ids, attn := m.tokenizer.Encode(text, m.cfg.SeqLen)

	m.mu.Lock()
	copy(m.inputIDs.GetData(), ids)
	copy(m.attentionMask.GetData(), attn)
	err := m.session.Run()
	logits := append([]float32(nil), m.output.GetData()...)
	m.mu.Unlock()
	if err != nil {
		return signals.Sentiment{}, fmt.Errorf("onnx run: %w", err)
	}
	return decodeLogits(logits, m.labels, m.cfg.NeutralBelow), nil
}

// Close releases the session and tensors.
func (m *ONNXSentiment) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	for _, t := range []interface{ Destroy() error }{m.inputIDs, m.attentionMask, m.output} {
		errs = append(errs, t.Destroy())
	}
	return errors.Join(errs...)
}

func decodeLogits(logits []float32, labels []string, neutralBelow float64) signals.Sentiment {
	if len(logits) == 0 || len(labels) == 0 {
		return signals.Sentiment{Label: Neutral}
	}
	n := min(len(logits), len(labels))
	maxLogit := float64(logits[0])
	for _, l := range logits[1:n] {
		maxLogit = math.Max(maxLogit, float64(l))
	}
	var sum float64
	probs := make([]float64, n)
	for i := 0; i < n; i++ {
		probs[i] = math.Exp(float64(logits[i]) - maxLogit)
		sum += probs[i]
	}
	best := 0
	for i := range probs {
		probs[i] /= sum
		if probs[i] > probs[best] {
			best = i
		}
	}

	label := strings.ToUpper(labels[best])
	p := probs[best]
	switch {
	case p < neutralBelow, strings.Contains(label, "NEU"):
		return signals.Sentiment{Label: Neutral, Score: 0}
	case strings.Contains(label, "NEG"):
		return signals.Sentiment{Label: Negative, Score: -p}
	default:
		return signals.Sentiment{Label: Positive, Score: p}
	}
}

// loadLabels accepts ["NEGATIVE","POSITIVE"] or {"0":"NEGATIVE",...}.
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}
	var byIndex map[int]string
	if err := json.Unmarshal(data, &byIndex); err != nil {
		return nil, err
	}
	out := make([]string, len(byIndex))
	for i, v := range byIndex {
		if i < 0 || i >= len(out) {
			return nil, fmt.Errorf("label index %d out of range", i)
		}
		out[i] = v
	}
	return out, nil
}

func loadModelConfig(path string) (ModelConfig, error) {
	cfg := ModelConfig{SeqLen: 128}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.SeqLen <= 0 {
		cfg.SeqLen = 128
	}
	return cfg, nil
}

// sharedLibraryPath prefers ONNXRUNTIME_SHARED_LIBRARY_PATH, then probes
// the bundle and common system locations.
func sharedLibraryPath(dir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}
	names := []string{"libonnxruntime.so", "libonnxruntime.dylib", "onnxruntime.dll"}
	dirs := []string{dir, filepath.Join(dir, "lib"), "/opt/homebrew/lib", "/usr/local/lib", "/usr/lib"}
	for _, d := range dirs {
		for _, n := range names {
			candidate := filepath.Join(d, n)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
