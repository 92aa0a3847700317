package acquisition

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// DefaultPlaceholderDuration is the length of generated placeholders.
const DefaultPlaceholderDuration = 2 * time.Second

// ErrNoPlaceholder means every step of the placeholder chain failed.
var ErrNoPlaceholder = errors.New("placeholder could not be generated")

// PlaceholderKind says which step of the chain produced the placeholder.
type PlaceholderKind string

const (
	PlaceholderEncodedAudio PlaceholderKind = "encoded_audio"
	PlaceholderEncodedVideo PlaceholderKind = "encoded_video"
	PlaceholderWAV          PlaceholderKind = "wav_audio"
	PlaceholderText         PlaceholderKind = "text"
)

// Placeholder is a generated stand-in artifact.
type Placeholder struct {
	Artifact
	Kind            PlaceholderKind
	DurationSeconds int
}

// SyntheticGenerator builds placeholders through a chain of decreasing
// capability: encoder, then native WAV (audio only), then a text file.
type SyntheticGenerator struct {
	encoder  PlaceholderEncoder
	duration time.Duration
}

// NewSyntheticGenerator accepts a nil encoder.
func NewSyntheticGenerator(encoder PlaceholderEncoder, duration time.Duration) *SyntheticGenerator {
	if duration <= 0 {
		duration = DefaultPlaceholderDuration
	}
	return &SyntheticGenerator{
		encoder:  encoder,
		duration: duration,
	}
}

// DurationSeconds is the placeholder length in whole seconds, at least one.
func (g *SyntheticGenerator) DurationSeconds() int {
	secs := int(math.Round(g.duration.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type placeholderStep struct {
	kind PlaceholderKind
	name string
	run  func(ctx context.Context, dest string) error
}

// Generate writes a placeholder for mode into dir.
func (g *SyntheticGenerator) Generate(ctx context.Context, mode Mode, sourceID, dir string) (*Placeholder, error) {
	secs := g.DurationSeconds()

	var steps []placeholderStep
	if mode == ModeAudioOnly {
		if g.encoder != nil {
			steps = append(steps, placeholderStep{PlaceholderEncodedAudio, "placeholder.mp3", func(ctx context.Context, dest string) error {
				return g.encoder.EncodeSilentAudio(ctx, secs, dest)
			}})
		}
		steps = append(steps, placeholderStep{PlaceholderWAV, "placeholder.wav", func(_ context.Context, dest string) error {
			return writeSilentWAV(dest, secs)
		}})
	} else if g.encoder != nil {
		steps = append(steps, placeholderStep{PlaceholderEncodedVideo, "placeholder.mp4", func(ctx context.Context, dest string) error {
			return g.encoder.EncodeColorVideo(ctx, secs, dest)
		}})
	}
	steps = append(steps, placeholderStep{PlaceholderText, "placeholder.txt", func(_ context.Context, dest string) error {
		return writePlaceholderText(dest, mode, sourceID)
	}})

	var errs []error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dest := filepath.Join(dir, step.name)
		if err := step.run(ctx, dest); err != nil {
			os.Remove(dest)
			errs = append(errs, fmt.Errorf("%s: %w", step.kind, err))
			utils.LogWarn(ctx, "Placeholder step failed", utils.Fields{"step": string(step.kind), "error": err.Error()})
			continue
		}

		artifact, err := Inspect(dest)
		if err != nil || artifact.SizeBytes == 0 {
			os.Remove(dest)
			if err == nil {
				err = errors.New("empty output")
			}
			errs = append(errs, fmt.Errorf("%s: %w", step.kind, err))
			continue
		}

		return &Placeholder{
			Artifact:        artifact,
			Kind:            step.kind,
			DurationSeconds: secs,
		}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrNoPlaceholder, errors.Join(errs...))
}

const (
	wavSampleRate    = 44100
	wavBitsPerSample = 16
	wavChannels      = 1
)

// writeSilentWAV writes a PCM WAV file of silence.
func writeSilentWAV(dest string, seconds int) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	defer f.Close()

	blockAlign := wavChannels * wavBitsPerSample / 8
	dataSize := uint32(wavSampleRate * seconds * blockAlign)

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   wavChannels,
		SampleRate:    wavSampleRate,
		ByteRate:      uint32(wavSampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: wavBitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if err := f.Truncate(int64(44 + dataSize)); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	return f.Close()
}

func writePlaceholderText(dest string, mode Mode, sourceID string) error {
	content := fmt.Sprintf(
		"PLACEHOLDER - media not available\nsource: %s\nmode: %s\n\nNo format of this source could be downloaded and no media encoder was available to render a placeholder clip.\n",
		sourceID, mode,
	)
	if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write placeholder text: %w", err)
	}
	return nil
}
