package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/bpowers/assets"
)

const (
	defaultObjects = 1000
	maxPayload     = 4096
	resourceFile   = "sharedassets0.resource"
)

var (
	outPath   = pflag.StringP("out", "o", "sharedassets0.assets", "container to write")
	nObjects  = pflag.IntP("objects", "n", defaultObjects, "number of objects to generate")
	seed      = pflag.Int64("seed", 0, "random seed (0 picks one)")
	splitSize = pflag.Int("split", 0, "if > 0, also write the file as .splitN parts of this many bytes")
	verbose   = pflag.BoolP("verbose", "v", false, "log save diagnostics")
)

var levelScriptHash = uuid.MustParse("5b1e3c2a-0d4f-4a51-9c4c-8a2f6f1b7e01")

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		var seedBytes [8]byte
		_, _ = crand.Read(seedBytes[:])
		seed = int64(binary.LittleEndian.Uint64(seedBytes[:]))
	}
	return rand.New(rand.NewSource(seed))
}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	_, _ = rng.Read(b)
	return b
}

func generate(rng *rand.Rand, n int, logger *slog.Logger) (*assets.Container, error) {
	c := assets.New(assets.WithName(filepath.Base(*outPath)), assets.WithLogger(logger))
	c.Metadata.AddExternal(assets.ExternalFile{
		GUID:     uuid.MustParse("00000000-0000-0000-e000-000000000000"),
		FileName: "library/unity default resources",
	})
	scripts := c.Metadata.AddExternal(assets.ExternalFile{
		GUID:     uuid.New(),
		Type:     3,
		FileName: "globalgamemanagers.assets",
	})
	texture := c.TypeIndexFor(assets.ClassTexture2D, uuid.Nil)
	audio := c.TypeIndexFor(assets.ClassAudioClip, uuid.Nil)
	level := c.TypeIndexFor(assets.ClassMonoBehaviour, levelScriptHash)

	var resourceOffset uint64
	for i := 0; i < n; i++ {
		var obj assets.Object
		switch rng.Intn(3) {
		case 0:
			obj = assets.NewOpaqueObject(texture, randomBytes(rng, rng.Intn(maxPayload)))
		case 1:
			clip := assets.NewAudioClipObject(audio)
			clip.Name = fmt.Sprintf("clip_%d", i)
			clip.LoadType = 1
			clip.Channels = 2
			clip.Frequency = 44100
			clip.BitsPerSample = 16
			clip.Length = rng.Float32() * 300
			clip.PreloadAudioData = true
			size := uint64(rng.Intn(1 << 20))
			clip.Resource = assets.StreamedResource{Source: resourceFile, Offset: resourceOffset, Size: size}
			resourceOffset += size
			obj = clip
		default:
			obj = assets.NewMonoBehaviourObject(level, assets.MonoBehaviourHeader{
				Enabled: true,
				Script:  assets.Pointer{FileIndex: scripts, ObjectID: int64(rng.Intn(1000) + 1)},
				Name:    fmt.Sprintf("level_%d", i),
			}, randomBytes(rng, rng.Intn(256)))
		}
		if err := c.AddObject(obj, true); err != nil {
			return nil, fmt.Errorf("AddObject(%d): %w", i, err)
		}
	}
	return c, nil
}

func writeSplit(path string, b []byte, partSize int) error {
	for i := 0; len(b) > 0; i++ {
		n := min(partSize, len(b))
		part := fmt.Sprintf("%s.split%d", path, i)
		if err := os.WriteFile(part, b[:n], 0o644); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func main() {
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c, err := generate(newRand(*seed), *nObjects, logger)
	if err != nil {
		logger.Error("generate failed", "err", err)
		os.Exit(1)
	}
	if err := c.WriteFile(*outPath); err != nil {
		logger.Error("write failed", "path", *outPath, "err", err)
		os.Exit(1)
	}
	if *splitSize > 0 {
		b, err := c.Bytes()
		if err != nil {
			logger.Error("serialize failed", "err", err)
			os.Exit(1)
		}
		if err := writeSplit(*outPath, b, *splitSize); err != nil {
			logger.Error("split write failed", "path", *outPath, "err", err)
			os.Exit(1)
		}
	}
	logger.Info("wrote container", "path", *outPath, "objects", c.Len(), "size", c.Header.FileSize)
}
