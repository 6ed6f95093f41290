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

package cmd

import (
	"fmt"
	"os"

	"github.com/antflydb/lector/lib/backends"
	"github.com/antflydb/lector/lib/pipelines"
	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show model and device configuration",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if modelPath == "" {
		modelPath = viper.GetString("model")
	}
	if modelPath == "" {
		return fmt.Errorf("--model is required")
	}

	config, err := pipelines.LoadRecognitionModelConfig(modelPath)
	if err != nil {
		return err
	}

	gpu := backends.DetectGPU()
	out := map[string]any{
		"model_path":     config.ModelPath,
		"encoder":        config.EncoderPath,
		"text_encoder":   config.TextEncoderPath,
		"decoder":        config.DecoderPath,
		"decoder_config": config.DecoderConfig,
		"image_config":   config.ImageConfig,
		"lang_tokens":    len(config.LangTokens),
		"device":         backends.DetectDevice(),
		"gpu":            gpu,
	}

	enc := gojson.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
