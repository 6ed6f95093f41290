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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/antflydb/lector/lib/backends"
	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	lector "github.com/antflydb/lector"
)

var runCmd = &cobra.Command{
	Use:   "run [images...]",
	Short: "Recognize text in images",
	Long: `Recognize text in cropped line images and print one JSON result per line.

Examples:
  # Recognize two line crops
  lector run --model ./models/recognition line1.png line2.png

  # Pin batch size and language
  lector run --model ./models/recognition --batch-size 32 --langs en,fr page/*.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("batch-size", 0, "recognition batch size (0 = derive from free memory)")
	mustBindPFlag("batch_size", runCmd.Flags().Lookup("batch-size"))

	runCmd.Flags().Int("max-tokens", 0, "token budget per batch (0 = model default)")
	mustBindPFlag("max_tokens", runCmd.Flags().Lookup("max-tokens"))

	runCmd.Flags().String("device", "auto", "execution device (auto, cuda, coreml, tpu, cpu)")
	mustBindPFlag("device", runCmd.Flags().Lookup("device"))

	runCmd.Flags().String("langs", "", "comma-separated language tags applied to every image")
	mustBindPFlag("langs", runCmd.Flags().Lookup("langs"))

	runCmd.Flags().Int("pool-size", 1, "number of concurrent recognizers")
	mustBindPFlag("pool_size", runCmd.Flags().Lookup("pool-size"))
}

// lineResult is one image's recognition output on stdout.
type lineResult struct {
	File       string  `json:"file"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if modelPath == "" {
		modelPath = viper.GetString("model")
	}
	if modelPath == "" {
		return fmt.Errorf("--model is required")
	}

	svc, err := lector.New(&lector.Config{
		ModelPath:    modelPath,
		PoolSize:     viper.GetInt("pool_size"),
		BatchSize:    viper.GetInt("batch_size"),
		MaxNewTokens: viper.GetInt("max_tokens"),
		Device:       backends.DeviceType(viper.GetString("device")),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = svc.Close()
	}()

	images := make([][]byte, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		images[i] = data
	}

	var langs [][]string
	if tags := viper.GetString("langs"); tags != "" {
		shared := strings.Split(tags, ",")
		langs = make([][]string, len(images))
		for i := range langs {
			langs[i] = shared
		}
	}

	texts, confidences, err := svc.RecognizeBytes(ctx, images, langs)
	if err != nil {
		return err
	}

	enc := gojson.NewEncoder(os.Stdout)
	for i := range texts {
		if err := enc.Encode(lineResult{
			File:       args[i],
			Text:       texts[i],
			Confidence: confidences[i],
		}); err != nil {
			return err
		}
	}
	return nil
}
