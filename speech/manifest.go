package speech

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifestFormat is the model container revision this engine understands.
const manifestFormat = 1

// manifest is the on-disk model container: acoustic backend description,
// audio geometry, and the output alphabet. It deliberately says nothing
// about the acoustic model's internals.
type manifest struct {
	Format        int          `yaml:"format"`
	SampleRate    int          `yaml:"sample_rate"`
	WindowSamples int          `yaml:"window_samples"`
	WindowStride  int          `yaml:"window_stride"`
	Alphabet      []string     `yaml:"alphabet"`
	Acoustic      acousticSpec `yaml:"acoustic"`
}

type acousticSpec struct {
	Backend string `yaml:"backend"`
	Command string `yaml:"command"`
}

func loadManifest(path string) (*manifest, error) {
	if path == "" {
		return nil, newError(CodeNoModel, "model path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrapError(CodeNoModel, "model file not found", err)
		}
		return nil, wrapError(CodeFailReadModel, "read model file", err)
	}
	var mf manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, wrapError(CodeFailReadModel, "parse model file", err)
	}
	if mf.Format != manifestFormat {
		return nil, newError(CodeModelIncompatible,
			fmt.Sprintf("model format %d, engine supports %d", mf.Format, manifestFormat))
	}
	if mf.SampleRate <= 0 {
		return nil, newError(CodeModelIncompatible,
			fmt.Sprintf("invalid sample rate %d", mf.SampleRate))
	}
	if mf.WindowSamples == 0 {
		// 20 ms at the model's sample rate.
		mf.WindowSamples = mf.SampleRate / 50
	}
	if mf.WindowStride == 0 {
		mf.WindowStride = mf.WindowSamples
	}
	if mf.WindowSamples <= 0 || mf.WindowStride <= 0 || mf.WindowStride > mf.WindowSamples {
		return nil, newError(CodeInvalidShape,
			fmt.Sprintf("invalid window geometry %d/%d", mf.WindowSamples, mf.WindowStride))
	}
	if len(mf.Alphabet) == 0 {
		return nil, newError(CodeInvalidAlphabet, "model declares no alphabet")
	}
	return &mf, nil
}
