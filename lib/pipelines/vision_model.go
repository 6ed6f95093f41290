// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipelines

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antflydb/lector/lib/backends"
	"github.com/antflydb/lector/lib/recognition"
)

// =============================================================================
// Configuration Types
// =============================================================================

// RecognitionModelConfig holds parsed configuration for a recognition
// model directory. This is loaded from config.json and
// preprocessor_config.json.
type RecognitionModelConfig struct {
	// Path to the model directory
	ModelPath string

	// Paths to ONNX files
	EncoderPath     string
	TextEncoderPath string // optional text-context encoder
	DecoderPath     string

	// Decoder configuration
	DecoderConfig *backends.DecoderConfig

	// Image preprocessing configuration
	ImageConfig *backends.ImageConfig

	// LangTokens maps language tags to their token ids, harvested from
	// the tokenizer's added special tokens.
	LangTokens map[string]int32
}

// LoadRecognitionModelConfig loads and parses configuration for a
// recognition model. This is backend-agnostic.
func LoadRecognitionModelConfig(modelPath string) (*RecognitionModelConfig, error) {
	encoderPath := FindONNXFile(modelPath, EncoderONNXCandidates())
	decoderPath := FindONNXFile(modelPath, DecoderONNXCandidates())
	textEncoderPath := FindONNXFile(modelPath, []string{
		"text_encoder.onnx",
		"text_encoder_model.onnx",
		"encoder_text.onnx",
	})

	rawConfig, err := loadRawModelConfig(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model config: %w", err)
	}
	preprocConfig := loadPreprocessorConfig(modelPath)

	return &RecognitionModelConfig{
		ModelPath:       modelPath,
		EncoderPath:     encoderPath,
		TextEncoderPath: textEncoderPath,
		DecoderPath:     decoderPath,
		DecoderConfig:   buildDecoderConfig(rawConfig),
		ImageConfig:     buildImageConfig(rawConfig, preprocConfig),
		LangTokens:      loadLangTokens(modelPath),
	}, nil
}

// IsRecognitionModel checks if a model path contains a usable
// encoder/decoder pair.
func IsRecognitionModel(path string) bool {
	return FindONNXFile(path, EncoderONNXCandidates()) != "" &&
		FindONNXFile(path, DecoderONNXCandidates()) != ""
}

// EncoderONNXCandidates returns common ONNX file names for encoders.
func EncoderONNXCandidates() []string {
	return []string{
		"encoder.onnx",
		"vision_encoder.onnx",
		"encoder_model.onnx",
	}
}

// DecoderONNXCandidates returns common ONNX file names for decoders.
func DecoderONNXCandidates() []string {
	return []string{
		"decoder_model_merged.onnx", // Preferred: merged decoder with KV-cache
		"decoder_with_past.onnx",
		"decoder.onnx",
		"decoder_model.onnx",
	}
}

// =============================================================================
// Raw Config Structs and Parsing Helpers
// =============================================================================

// rawModelConfig represents the model's config.json structure.
type rawModelConfig struct {
	// Top-level decoder fields (some models use these)
	VocabSize           int   `json:"vocab_size"`
	DecoderStartTokenID int32 `json:"decoder_start_token_id"`
	EOSTokenID          any   `json:"eos_token_id"` // Can be int or []int
	PadTokenID          int32 `json:"pad_token_id"`
	MaxLength           int   `json:"max_length"`

	DecoderLayers         int `json:"decoder_layers"`
	DecoderAttentionHeads int `json:"decoder_attention_heads"`
	DModel                int `json:"d_model"`
	HiddenSize            int `json:"hidden_size"`

	// Image config (from config.json)
	ImageSize any       `json:"image_size"`
	ImageMean []float32 `json:"image_mean"`
	ImageStd  []float32 `json:"image_std"`
	Size      any       `json:"size"`

	// Nested decoder config (VisionEncoderDecoder models)
	DecoderConfig *struct {
		VocabSize             int   `json:"vocab_size"`
		DecoderStartTokenID   int32 `json:"decoder_start_token_id"`
		EOSTokenID            any   `json:"eos_token_id"`
		PadTokenID            int32 `json:"pad_token_id"`
		MaxLength             int   `json:"max_length"`
		DecoderLayers         int   `json:"decoder_layers"`
		DecoderAttentionHeads int   `json:"decoder_attention_heads"`
		DModel                int   `json:"d_model"`
	} `json:"decoder"`

	// Encoder config (for vision models)
	EncoderConfig *struct {
		ImageSize any `json:"image_size"`
	} `json:"encoder"`
}

// rawPreprocessorConfig represents preprocessor_config.json
type rawPreprocessorConfig struct {
	ImageMean     []float32 `json:"image_mean"`
	ImageStd      []float32 `json:"image_std"`
	RescaleFactor float32   `json:"rescale_factor"`
	Size          any       `json:"size"`
}

func loadRawModelConfig(path string) (*rawModelConfig, error) {
	configPath := filepath.Join(path, "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config.json: %w", err)
	}

	var config rawModelConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config.json: %w", err)
	}
	return &config, nil
}

func loadPreprocessorConfig(path string) *rawPreprocessorConfig {
	configPath := filepath.Join(path, "preprocessor_config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil
	}

	var config rawPreprocessorConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil
	}
	return &config
}

// parseEOSTokenID handles eos_token_id which can be int or []int.
func parseEOSTokenID(v any) int32 {
	switch val := v.(type) {
	case float64:
		return int32(val)
	case []interface{}:
		if len(val) > 0 {
			if f, ok := val[0].(float64); ok {
				return int32(f)
			}
		}
	}
	return 0
}

// buildDecoderConfig creates a DecoderConfig from the raw config.
func buildDecoderConfig(cfg *rawModelConfig) *backends.DecoderConfig {
	// Prefer nested decoder config (VisionEncoderDecoder models)
	if cfg.DecoderConfig != nil {
		dec := cfg.DecoderConfig
		numHeads := FirstNonZero(dec.DecoderAttentionHeads, 8)
		hiddenSize := FirstNonZero(dec.DModel, 768)
		return &backends.DecoderConfig{
			VocabSize:           dec.VocabSize,
			MaxLength:           FirstNonZero(dec.MaxLength, 512),
			EOSTokenID:          parseEOSTokenID(dec.EOSTokenID),
			PadTokenID:          dec.PadTokenID,
			DecoderStartTokenID: dec.DecoderStartTokenID,
			NumLayers:           FirstNonZero(dec.DecoderLayers, 6),
			NumHeads:            numHeads,
			HeadDim:             hiddenSize / numHeads,
		}
	}

	numHeads := FirstNonZero(cfg.DecoderAttentionHeads, 8)
	hiddenSize := FirstNonZero(cfg.DModel, cfg.HiddenSize, 768)
	return &backends.DecoderConfig{
		VocabSize:           cfg.VocabSize,
		MaxLength:           FirstNonZero(cfg.MaxLength, 512),
		EOSTokenID:          parseEOSTokenID(cfg.EOSTokenID),
		PadTokenID:          cfg.PadTokenID,
		DecoderStartTokenID: cfg.DecoderStartTokenID,
		NumLayers:           FirstNonZero(cfg.DecoderLayers, 6),
		NumHeads:            numHeads,
		HeadDim:             hiddenSize / numHeads,
	}
}

// buildImageConfig creates an ImageConfig from the raw configs.
func buildImageConfig(cfg *rawModelConfig, preproc *rawPreprocessorConfig) *backends.ImageConfig {
	imageConfig := backends.DefaultImageConfig()

	var imageMean, imageStd []float32
	var sizeField any
	if preproc != nil {
		imageMean = preproc.ImageMean
		imageStd = preproc.ImageStd
		sizeField = preproc.Size
		if preproc.RescaleFactor != 0 {
			imageConfig.RescaleFactor = preproc.RescaleFactor
		}
	}
	if len(imageMean) == 0 {
		imageMean = cfg.ImageMean
	}
	if len(imageStd) == 0 {
		imageStd = cfg.ImageStd
	}
	if sizeField == nil {
		sizeField = cfg.Size
	}
	if sizeField == nil {
		sizeField = cfg.ImageSize
	}
	if sizeField == nil && cfg.EncoderConfig != nil {
		sizeField = cfg.EncoderConfig.ImageSize
	}

	if w, h := extractImageSize(sizeField); w > 0 && h > 0 {
		imageConfig.Width = w
		imageConfig.Height = h
	}
	if len(imageMean) == 3 {
		copy(imageConfig.Mean[:], imageMean)
	}
	if len(imageStd) == 3 {
		copy(imageConfig.Std[:], imageStd)
	}
	return imageConfig
}

// extractImageSize extracts width and height from various JSON formats.
// Line-recognition encoders are rectangular, so {height, width} maps keep
// both dimensions; a bare number means square.
func extractImageSize(v any) (width, height int) {
	switch val := v.(type) {
	case float64:
		return int(val), int(val)
	case int:
		return val, val
	case []interface{}:
		if len(val) == 2 {
			w, wok := val[0].(float64)
			h, hok := val[1].(float64)
			if wok && hok {
				return int(w), int(h)
			}
		}
	case map[string]interface{}:
		w, wok := val["width"].(float64)
		h, hok := val["height"].(float64)
		if wok && hok {
			return int(w), int(h)
		}
		if se, ok := val["shortest_edge"].(float64); ok {
			return int(se), int(se)
		}
	}
	return 0, 0
}

// loadLangTokens harvests language-tag token ids from the tokenizer's
// added tokens (entries like "<en>" or "[fr]"). Missing files or tokens
// just mean an untagged model.
func loadLangTokens(modelPath string) map[string]int32 {
	data, err := os.ReadFile(filepath.Join(modelPath, "tokenizer.json"))
	if err != nil {
		return nil
	}

	var raw struct {
		AddedTokens []struct {
			ID      int    `json:"id"`
			Content string `json:"content"`
			Special bool   `json:"special"`
		} `json:"added_tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	tokens := make(map[string]int32)
	for _, tok := range raw.AddedTokens {
		tag := strings.Trim(tok.Content, "<>[]")
		if tag == "" || tag == tok.Content {
			continue
		}
		tokens[tag] = int32(tok.ID)
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// =============================================================================
// Model (Vision Encoder + Text Encoder + Decoder)
// =============================================================================

// Ensure recognitionModel implements recognition.Model
var _ recognition.Model = (*recognitionModel)(nil)

// recognitionModel drives encoder, optional text-context encoder, and
// decoder sessions. The decoder's key/value cache lives here between
// steps; SetupCache clears it, so one batch never sees another's state.
type recognitionModel struct {
	config *RecognitionModelConfig

	encoderSession     backends.Session
	textEncoderSession backends.Session // nil when the model has none
	decoderSession     backends.Session

	backendType backends.BackendType

	// Decoder cache state, keyed by past input tensor name.
	cache         map[string]cachedTensor
	cacheCapacity int
	cacheLen      int
}

type cachedTensor struct {
	data  []float32
	shape []int64
}

// LoadRecognitionModel loads a recognition model using the given session
// factory. It discovers the ONNX files and creates one session per stage.
func LoadRecognitionModel(modelPath string, factory backends.SessionFactory, opts ...backends.SessionOption) (recognition.Model, error) {
	config, err := LoadRecognitionModelConfig(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model config: %w", err)
	}
	if config.EncoderPath == "" {
		return nil, fmt.Errorf("encoder ONNX file not found in %s", modelPath)
	}
	if config.DecoderPath == "" {
		return nil, fmt.Errorf("decoder ONNX file not found in %s", modelPath)
	}

	encoderSession, err := factory.CreateSession(config.EncoderPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating encoder session: %w", err)
	}

	var textEncoderSession backends.Session
	if config.TextEncoderPath != "" {
		textEncoderSession, err = factory.CreateSession(config.TextEncoderPath, opts...)
		if err != nil {
			encoderSession.Close()
			return nil, fmt.Errorf("creating text encoder session: %w", err)
		}
	}

	decoderSession, err := factory.CreateSession(config.DecoderPath, opts...)
	if err != nil {
		encoderSession.Close()
		if textEncoderSession != nil {
			textEncoderSession.Close()
		}
		return nil, fmt.Errorf("creating decoder session: %w", err)
	}

	return &recognitionModel{
		config:             config,
		encoderSession:     encoderSession,
		textEncoderSession: textEncoderSession,
		decoderSession:     decoderSession,
		backendType:        factory.Backend(),
	}, nil
}

// Config returns the parsed model configuration.
func (m *recognitionModel) Config() *RecognitionModelConfig {
	return m.config
}

// DecoderConfig returns configuration needed for generation.
func (m *recognitionModel) DecoderConfig() *backends.DecoderConfig {
	return m.config.DecoderConfig
}

// Encode encodes preprocessed image pixels into encoder hidden states.
func (m *recognitionModel) Encode(ctx context.Context, pixels []float32, batch, channels, height, width int) (*backends.EncoderOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := backends.NamedTensor{
		Name:  m.encoderInputName(),
		Shape: []int64{int64(batch), int64(channels), int64(height), int64(width)},
		Data:  pixels,
	}

	outputs, err := m.encoderSession.Run([]backends.NamedTensor{input})
	if err != nil {
		return nil, fmt.Errorf("running encoder: %w", err)
	}
	return extractHiddenStates(outputs, "encoder")
}

// EncodeTextContext projects encoder hidden states into the text context
// the decoder attends to. Models without a text encoder pass the hidden
// states through unchanged.
func (m *recognitionModel) EncodeTextContext(ctx context.Context, hidden *backends.EncoderOutput) (*backends.EncoderOutput, error) {
	if m.textEncoderSession == nil {
		return hidden, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputName := "encoder_hidden_states"
	if info := m.textEncoderSession.InputInfo(); len(info) > 0 {
		inputName = info[0].Name
	}
	input := backends.NamedTensor{
		Name:  inputName,
		Shape: []int64{int64(hidden.Shape[0]), int64(hidden.Shape[1]), int64(hidden.Shape[2])},
		Data:  hidden.HiddenStates,
	}

	outputs, err := m.textEncoderSession.Run([]backends.NamedTensor{input})
	if err != nil {
		return nil, fmt.Errorf("running text encoder: %w", err)
	}
	return extractHiddenStates(outputs, "text encoder")
}

// extractHiddenStates pulls the first [batch, seq, hidden] float32 output.
func extractHiddenStates(outputs []backends.NamedTensor, stage string) (*backends.EncoderOutput, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no %s output", stage)
	}
	output := outputs[0]
	if len(output.Shape) < 3 {
		return nil, fmt.Errorf("unexpected %s output shape: %v", stage, output.Shape)
	}
	hiddenStates, ok := output.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("%s output is not float32", stage)
	}
	return &backends.EncoderOutput{
		HiddenStates: hiddenStates,
		Shape:        [3]int{int(output.Shape[0]), int(output.Shape[1]), int(output.Shape[2])},
	}, nil
}

// encoderInputName returns the expected input name for the encoder.
func (m *recognitionModel) encoderInputName() string {
	if info := m.encoderSession.InputInfo(); len(info) > 0 {
		return info[0].Name
	}
	return "pixel_values"
}

// SetupCache clears the decoder cache and sets its batch capacity.
func (m *recognitionModel) SetupCache(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	m.cache = make(map[string]cachedTensor)
	m.cacheCapacity = capacity
	m.cacheLen = 0
	return nil
}

// Decode performs one step of autoregressive decoding.
func (m *recognitionModel) Decode(ctx context.Context, step *recognition.DecodeStep) (*recognition.DecodeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.cache == nil {
		return nil, fmt.Errorf("decoder cache not set up")
	}

	batchSize := len(step.InputIDs)
	if batchSize == 0 {
		return nil, fmt.Errorf("empty input")
	}
	seqLen := len(step.InputIDs[0])

	flatInputIDs := make([]int64, batchSize*seqLen)
	for i := 0; i < batchSize; i++ {
		for j := 0; j < seqLen; j++ {
			flatInputIDs[i*seqLen+j] = int64(step.InputIDs[i][j])
		}
	}

	tensorInputs, err := m.buildDecoderInputs(flatInputIDs, batchSize, seqLen, step)
	if err != nil {
		return nil, fmt.Errorf("building decoder inputs: %w", err)
	}

	outputs, err := m.decoderSession.Run(tensorInputs)
	if err != nil {
		return nil, fmt.Errorf("running decoder: %w", err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no decoder output")
	}

	logits, err := extractLastPositionLogits(outputs[0], batchSize, seqLen)
	if err != nil {
		return nil, err
	}

	m.storePresentKeyValues(outputs, step.Prefill)
	if len(step.CachePositions) > 0 {
		m.cacheLen = int(step.CachePositions[len(step.CachePositions)-1]) + 1
	}

	return &recognition.DecodeResult{Logits: logits}, nil
}

// extractLastPositionLogits reshapes the logits tensor to [batch, vocab],
// taking the last sequence position.
func extractLastPositionLogits(output backends.NamedTensor, batchSize, seqLen int) ([][]float32, error) {
	logitsData, ok := output.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("logits tensor is not float32")
	}
	shape := output.Shape
	vocabSize := int(shape[len(shape)-1])
	if len(logitsData) < batchSize*seqLen*vocabSize {
		return nil, fmt.Errorf("logits tensor too small: %d values for shape %v", len(logitsData), shape)
	}

	logits := make([][]float32, batchSize)
	for i := 0; i < batchSize; i++ {
		logits[i] = make([]float32, vocabSize)
		startIdx := i*seqLen*vocabSize + (seqLen-1)*vocabSize
		copy(logits[i], logitsData[startIdx:startIdx+vocabSize])
	}
	return logits, nil
}

// buildDecoderInputs creates the input tensors for the decoder session.
func (m *recognitionModel) buildDecoderInputs(inputIDs []int64, batchSize, seqLen int, step *recognition.DecodeStep) ([]backends.NamedTensor, error) {
	var inputs []backends.NamedTensor

	inputInfo := m.decoderSession.InputInfo()
	inputNames := make(map[string]bool)
	for _, info := range inputInfo {
		inputNames[info.Name] = true
	}

	inputs = append(inputs, backends.NamedTensor{
		Name:  GetDecoderInputIDsName(inputNames),
		Shape: []int64{int64(batchSize), int64(seqLen)},
		Data:  inputIDs,
	})

	if inputNames["cache_position"] {
		inputs = append(inputs, backends.NamedTensor{
			Name:  "cache_position",
			Shape: []int64{int64(len(step.CachePositions))},
			Data:  step.CachePositions,
		})
	}

	encoderOutput := step.Context
	if inputNames["encoder_hidden_states"] || inputNames["encoder_outputs"] {
		inputs = append(inputs, backends.NamedTensor{
			Name:  GetEncoderOutputName(inputNames),
			Shape: []int64{int64(encoderOutput.Shape[0]), int64(encoderOutput.Shape[1]), int64(encoderOutput.Shape[2])},
			Data:  encoderOutput.HiddenStates,
		})
	}

	if inputNames["encoder_attention_mask"] {
		encSeqLen := encoderOutput.Shape[1]
		mask := make([]int64, batchSize*encSeqLen)
		for i := range mask {
			mask[i] = 1
		}
		inputs = append(inputs, backends.NamedTensor{
			Name:  "encoder_attention_mask",
			Shape: []int64{int64(batchSize), int64(encSeqLen)},
			Data:  mask,
		})
	}

	if inputNames["use_cache_branch"] {
		inputs = append(inputs, m.useCacheBranchTensor(inputInfo, step))
	}

	encoderSeqLen := encoderOutput.Shape[1]
	for _, info := range inputInfo {
		if IsPastKeyValueInput(info.Name) {
			inputs = append(inputs, m.pastKVTensor(info.Name, batchSize, encoderSeqLen))
		}
	}

	return inputs, nil
}

// useCacheBranchTensor builds the use_cache_branch input with the data
// type the session expects.
func (m *recognitionModel) useCacheBranchTensor(inputInfo []backends.TensorInfo, step *recognition.DecodeStep) backends.NamedTensor {
	dataType := backends.DataTypeBool
	for _, info := range inputInfo {
		if info.Name == "use_cache_branch" {
			dataType = info.DataType
			break
		}
	}

	useCache := step.UseCache && !step.Prefill
	if dataType == backends.DataTypeFloat32 {
		val := []float32{0}
		if useCache {
			val[0] = 1
		}
		return backends.NamedTensor{Name: "use_cache_branch", Shape: []int64{1}, Data: val}
	}
	return backends.NamedTensor{Name: "use_cache_branch", Shape: []int64{1}, Data: []bool{useCache}}
}

// pastKVTensor returns the cached tensor for a past key/value input, or
// an empty tensor on the first step so the model computes everything from
// the encoder hidden states.
func (m *recognitionModel) pastKVTensor(name string, batchSize, encoderSeqLen int) backends.NamedTensor {
	if cached, ok := m.cache[name]; ok {
		return backends.NamedTensor{Name: name, Shape: cached.shape, Data: cached.data}
	}

	numHeads := m.config.DecoderConfig.NumHeads
	headDim := m.config.DecoderConfig.HeadDim
	if numHeads == 0 {
		numHeads = 8
	}
	if headDim == 0 {
		headDim = 64
	}

	// Empty seq dimension on the first step.
	return backends.NamedTensor{
		Name:  name,
		Shape: []int64{int64(batchSize), int64(numHeads), 0, int64(headDim)},
		Data:  []float32{},
	}
}

// storePresentKeyValues captures present.* outputs as next step's past
// inputs. Cross-attention tensors depend only on the encoder output, so
// they are stored once on prefill and left untouched afterwards.
func (m *recognitionModel) storePresentKeyValues(outputs []backends.NamedTensor, prefill bool) {
	for _, output := range outputs {
		if !IsPresentKeyValueOutput(output.Name) {
			continue
		}
		data, ok := output.Data.([]float32)
		if !ok {
			continue
		}
		name := "past_key_values" + strings.TrimPrefix(output.Name, "present")
		if isEncoderKVTensor(name) && !prefill {
			continue
		}
		m.cache[name] = cachedTensor{data: data, shape: output.Shape}
	}
}

// isEncoderKVTensor returns true if the tensor name indicates it's for
// encoder cross-attention, e.g. "past_key_values.0.encoder.key" vs
// "past_key_values.0.decoder.key".
func isEncoderKVTensor(name string) bool {
	return strings.Contains(name, ".encoder.")
}

// Close releases all session resources.
func (m *recognitionModel) Close() error {
	var errs []error
	if err := m.encoderSession.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing encoder: %w", err))
	}
	if m.textEncoderSession != nil {
		if err := m.textEncoderSession.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing text encoder: %w", err))
		}
	}
	if err := m.decoderSession.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing decoder: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing model: %v", errs)
	}
	return nil
}

// KV-cache input/output detection helpers

// IsPastKeyValueInput checks if the input name is a past key/value tensor.
// Common patterns: past_key_values.0.key, past_key_values.0.value, etc.
func IsPastKeyValueInput(name string) bool {
	return strings.HasPrefix(name, "past_key_values")
}

// IsPresentKeyValueOutput checks if the output name is a present key/value tensor.
// Common patterns: present.0.key, present.0.value, etc.
func IsPresentKeyValueOutput(name string) bool {
	return strings.HasPrefix(name, "present")
}

// GetDecoderInputIDsName returns the name for decoder input IDs based on available inputs.
func GetDecoderInputIDsName(inputNames map[string]bool) string {
	if inputNames["decoder_input_ids"] {
		return "decoder_input_ids"
	}
	return "input_ids"
}

// GetEncoderOutputName returns the name for encoder output based on available inputs.
func GetEncoderOutputName(inputNames map[string]bool) string {
	if inputNames["encoder_outputs"] {
		return "encoder_outputs"
	}
	return "encoder_hidden_states"
}
