// loqa-transcribe decodes a WAV file in one shot and prints the
// transcript, optionally as JSON with per-character timing.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/loqalabs/loqa-speech/internal/audio"
	"github.com/loqalabs/loqa-speech/speech"
)

func main() {
	var (
		modelPath   string
		beamWidth   int
		lmPath      string
		triePath    string
		alpha       float64
		beta        float64
		rejectOOV   bool
		numResults  int
		asJSON      bool
		showVersion bool
	)

	flag.StringVar(&modelPath, "model", "", "Path to model manifest")
	flag.IntVar(&beamWidth, "beam-width", 128, "Beam width for decoding")
	flag.StringVar(&lmPath, "lm", "", "Path to language model file (optional)")
	flag.StringVar(&triePath, "trie", "", "Path to vocabulary trie file (required with -lm)")
	flag.Float64Var(&alpha, "alpha", 0.75, "Language model weight")
	flag.Float64Var(&beta, "beta", 1.85, "Word insertion weight")
	flag.BoolVar(&rejectOOV, "reject-oov", false, "Reject out-of-vocabulary words instead of penalizing them")
	flag.IntVar(&numResults, "n", 1, "Number of alternative transcripts (JSON output only)")
	flag.BoolVar(&asJSON, "json", false, "Emit JSON with per-character timing")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(speech.Versions())
		return
	}

	if modelPath == "" || flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: loqa-transcribe -model model.yaml [flags] audio.wav")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(modelPath, beamWidth, lmPath, triePath, alpha, beta, rejectOOV, numResults, asJSON, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(modelPath string, beamWidth int, lmPath, triePath string, alpha, beta float64, rejectOOV bool, numResults int, asJSON bool, wavPath string) error {
	model, err := speech.New(modelPath, beamWidth)
	if err != nil {
		return err
	}
	defer model.Close()

	if rejectOOV {
		model.SetOOVPolicy(speech.OOVReject)
	}
	if lmPath != "" {
		if err := model.EnableDecoderWithLM(lmPath, triePath, alpha, beta); err != nil {
			return err
		}
	}

	samples, rate, err := audio.ReadWAV(wavPath)
	if err != nil {
		return err
	}
	if rate != model.SampleRate() {
		return fmt.Errorf("sample rate mismatch: file is %d Hz, model expects %d Hz", rate, model.SampleRate())
	}

	if !asJSON {
		text, err := model.SpeechToText(samples)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	result, err := model.SpeechToTextWithMetadata(samples, numResults)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
